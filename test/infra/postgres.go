package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var migrationsDir string

func init() {
	if _, file, _, ok := runtime.Caller(0); ok {
		migrationsDir = filepath.Join(filepath.Dir(file), "..", "..", "migrations")
	}
}

// Harness owns the lifecycle of the Postgres test container and pgx pool.
type Harness struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	dsn       string
}

// NewHarness boots a Postgres 16 container and applies the ledger
// migrations. If LEDGER_TEST_PG_DSN is set, it reuses that database instead
// of starting a container.
func NewHarness(ctx context.Context) (*Harness, error) {
	h := &Harness{}

	if dsn := os.Getenv("LEDGER_TEST_PG_DSN"); dsn != "" {
		h.dsn = dsn
	} else {
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("ledger"),
			postgres.WithUsername("ledger"),
			postgres.WithPassword("ledger"),
		)
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		h.container = pgC

		dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			h.Close(ctx)
			return nil, fmt.Errorf("resolve connection string: %w", err)
		}
		h.dsn = dsn
	}

	// Wider than the service default so concurrency tests never queue on
	// the pool itself.
	pool, err := db.NewPool(ctx, h.dsn, 32)
	if err != nil {
		h.Close(ctx)
		return nil, fmt.Errorf("create pool: %w", err)
	}
	h.pool = pool

	if err := h.applyMigrations(ctx); err != nil {
		h.Close(ctx)
		return nil, err
	}

	return h, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.container != nil {
		_ = h.container.Terminate(ctx)
	}
}

// applyMigrations executes the SQL files from the migrations folder in
// lexical order.
func (h *Harness) applyMigrations(ctx context.Context) error {
	if migrationsDir == "" {
		return fmt.Errorf("migrations dir unresolved")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if _, err := h.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply %s: %w", e.Name(), err)
		}
	}

	return nil
}
