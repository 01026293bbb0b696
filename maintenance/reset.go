package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// resetTables lists every ledger table in strict dependency order,
// children first, so plain deletes never trip a foreign key.
var resetTables = []string{
	"evidence.images",
	"evidence.emails",
	"evidence.texts",
	"evidence.videos",
	"cases.disputes",
	"transactions.status_history",
	"transactions.contracts",
	"transactions.documents",
	"transactions.transactions",
	"accounts.escrow",
	"accounts.bank_accounts",
	"users.user_info",
	"users.vendors",
	"users.credentials",
}

// resetSequences lists every identity sequence restarted to its initial
// value so the first row created after a reset receives id 1 again.
var resetSequences = []string{
	"evidence.images_id_seq",
	"evidence.emails_id_seq",
	"evidence.texts_id_seq",
	"evidence.videos_id_seq",
	"cases.disputes_id_seq",
	"transactions.status_history_id_seq",
	"transactions.contracts_id_seq",
	"transactions.documents_id_seq",
	"transactions.transactions_id_seq",
	"accounts.escrow_id_seq",
	"accounts.bank_accounts_id_seq",
}

// eventLogTable is the conversation tracker store owned by an external
// integration. It may not exist; the reset must tolerate its absence.
const (
	eventLogSchema = "public"
	eventLogTable  = "events"
)

// Resetter wipes the demo ledger back to its initial state.
type Resetter struct {
	pool *pgxpool.Pool
}

// NewResetter creates a resetter bound to the shared pool.
func NewResetter(pool *pgxpool.Pool) *Resetter {
	return &Resetter{pool: pool}
}

// ResetDemoState deletes every ledger row in dependency order, restarts the
// identity sequences, and clears the external event log if present, all in
// one transaction. Callers never observe a partially reset store; any
// failure aborts the whole reset and leaves prior state intact. Admin
// tokens survive: they authorize the reset itself.
func (r *Resetter) ResetDemoState(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("maintenance: begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range resetTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("maintenance: clear %s: %w", table, err)
		}
	}

	for _, seq := range resetSequences {
		if _, err := tx.Exec(ctx, "ALTER SEQUENCE "+seq+" RESTART WITH 1"); err != nil {
			return fmt.Errorf("maintenance: restart %s: %w", seq, err)
		}
	}

	if err := clearEventLog(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("maintenance: commit reset: %w", err)
	}
	return nil
}

// clearEventLog empties the external event log table, but only after
// confirming it exists. A missing table is not an error.
func clearEventLog(ctx context.Context, tx pgx.Tx) error {
	const existsSQL = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`

	var exists bool
	if err := tx.QueryRow(ctx, existsSQL, eventLogSchema, eventLogTable).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("maintenance: check event log: %w", err)
	}
	if !exists {
		return nil
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s.%s", eventLogSchema, eventLogTable)); err != nil {
		return fmt.Errorf("maintenance: clear event log: %w", err)
	}
	return nil
}
