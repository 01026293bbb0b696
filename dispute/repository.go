package dispute

import (
	"context"
	"errors"
	"fmt"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the dispute does not exist.
	ErrNotFound = errors.New("dispute: not found")
	// ErrDuplicate signals a dispute already exists for the identical
	// (transaction, buyer, vendor, amount) claim.
	ErrDuplicate = errors.New("dispute: duplicate filing")
	// ErrAlreadyClosed signals the dispute was closed before this call.
	ErrAlreadyClosed = errors.New("dispute: already closed")
	// ErrUnknownTransaction signals the dispute references a transaction
	// that does not exist.
	ErrUnknownTransaction = errors.New("dispute: unknown transaction")
	// ErrUnknownPrincipal signals a party token has no credential.
	ErrUnknownPrincipal = errors.New("dispute: unknown principal")
)

// Repository handles data access for dispute cases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create files a new dispute. The unique claim tuple is enforced by the
// storage layer so concurrent duplicate filings cannot both succeed.
func (r *Repository) Create(ctx context.Context, params OpenParams) (Case, error) {
	const insertSQL = `
		INSERT INTO cases.disputes (transaction_id, buyer_token, vendor_token, description, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, transaction_id, buyer_token, vendor_token, description, amount, opened_ts, closed_ts
	`

	var c Case
	err := r.pool.QueryRow(ctx, insertSQL,
		params.TransactionID, params.BuyerToken, params.VendorToken, params.Description, params.Amount,
	).Scan(&c.ID, &c.TransactionID, &c.BuyerToken, &c.VendorToken, &c.Description, &c.Amount, &c.OpenedTs, &c.ClosedTs)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Case{}, ErrDuplicate
		}
		if db.IsForeignKeyViolation(err, "disputes_transaction_id_fkey") {
			return Case{}, ErrUnknownTransaction
		}
		if db.IsForeignKeyViolation(err, "") {
			return Case{}, ErrUnknownPrincipal
		}
		return Case{}, fmt.Errorf("dispute: create: %w", err)
	}
	return c, nil
}

// Close stamps closed_ts exactly once. A second close surfaces
// ErrAlreadyClosed, a missing id ErrNotFound.
func (r *Repository) Close(ctx context.Context, id int64) (Case, error) {
	const closeSQL = `
		UPDATE cases.disputes
		SET closed_ts = now()
		WHERE id = $1 AND closed_ts IS NULL
		RETURNING id, transaction_id, buyer_token, vendor_token, description, amount, opened_ts, closed_ts
	`

	var c Case
	err := r.pool.QueryRow(ctx, closeSQL, id).
		Scan(&c.ID, &c.TransactionID, &c.BuyerToken, &c.VendorToken, &c.Description, &c.Amount, &c.OpenedTs, &c.ClosedTs)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Case{}, fmt.Errorf("dispute: close: %w", err)
	}

	// Zero rows means either the dispute is missing or it is already
	// closed; recheck to report which.
	var closed bool
	if err := r.pool.QueryRow(ctx, `SELECT closed_ts IS NOT NULL FROM cases.disputes WHERE id = $1`, id).Scan(&closed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("dispute: close recheck: %w", err)
	}
	if closed {
		return Case{}, ErrAlreadyClosed
	}
	return Case{}, ErrNotFound
}

// Get fetches a dispute by id.
func (r *Repository) Get(ctx context.Context, id int64) (Case, error) {
	const selectSQL = `
		SELECT id, transaction_id, buyer_token, vendor_token, description, amount, opened_ts, closed_ts
		FROM cases.disputes
		WHERE id = $1
	`

	var c Case
	err := r.pool.QueryRow(ctx, selectSQL, id).
		Scan(&c.ID, &c.TransactionID, &c.BuyerToken, &c.VendorToken, &c.Description, &c.Amount, &c.OpenedTs, &c.ClosedTs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("dispute: get: %w", err)
	}
	return c, nil
}

// ListByTransaction returns every dispute filed against a transaction,
// newest first.
func (r *Repository) ListByTransaction(ctx context.Context, transactionID int64) ([]Case, error) {
	const selectSQL = `
		SELECT id, transaction_id, buyer_token, vendor_token, description, amount, opened_ts, closed_ts
		FROM cases.disputes
		WHERE transaction_id = $1
		ORDER BY opened_ts DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, selectSQL, transactionID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Case, 0, 4)
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.BuyerToken, &c.VendorToken, &c.Description, &c.Amount, &c.OpenedTs, &c.ClosedTs); err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}
