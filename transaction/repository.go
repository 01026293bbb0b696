package transaction

import (
	"context"
	"errors"
	"fmt"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownTransaction signals the transaction id does not exist.
	ErrUnknownTransaction = errors.New("transaction: not found")
	// ErrUnknownPrincipal signals the buyer token has no credential.
	ErrUnknownPrincipal = errors.New("transaction: unknown principal")
	// ErrNotAVendor signals the vendor token has no vendor profile.
	ErrNotAVendor = errors.New("transaction: vendor profile missing")
	// ErrNoStatus signals the transaction has no status history yet.
	ErrNoStatus = errors.New("transaction: no status recorded")
)

// Repository handles data access for transactions, their status history,
// contracts, and documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed transaction repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureBuyerTx verifies the buyer token has a credential.
func (r *Repository) EnsureBuyerTx(ctx context.Context, tx pgx.Tx, token string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM users.credentials WHERE token = $1`, token).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnknownPrincipal
	}
	if err != nil {
		return fmt.Errorf("transaction: ensure buyer: %w", err)
	}
	return nil
}

// EnsureVendorTx verifies the vendor token carries a vendor profile.
func (r *Repository) EnsureVendorTx(ctx context.Context, tx pgx.Tx, token string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM users.vendors WHERE user_token = $1`, token).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotAVendor
	}
	if err != nil {
		return fmt.Errorf("transaction: ensure vendor: %w", err)
	}
	return nil
}

// InsertTx inserts the transaction row inside the active transaction.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, params OpenParams, escrowAccountID int64) (int64, error) {
	const insertSQL = `
		INSERT INTO transactions.transactions
			(buyer_token, vendor_token, escrow_account_id, transaction_amount, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, insertSQL,
		params.BuyerToken, params.VendorToken, escrowAccountID, params.Amount, params.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("transaction: insert: %w", err)
	}
	return id, nil
}

// AppendStatusTx appends one lifecycle event inside the active transaction.
func (r *Repository) AppendStatusTx(ctx context.Context, tx pgx.Tx, transactionID int64, status string) (StatusEvent, error) {
	const insertSQL = `
		INSERT INTO transactions.status_history (transaction_id, status)
		VALUES ($1, $2)
		RETURNING id, transaction_id, status, status_change_date
	`

	var ev StatusEvent
	err := tx.QueryRow(ctx, insertSQL, transactionID, status).
		Scan(&ev.ID, &ev.TransactionID, &ev.Status, &ev.ChangeDate)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return StatusEvent{}, ErrUnknownTransaction
		}
		return StatusEvent{}, fmt.Errorf("transaction: append status: %w", err)
	}
	return ev, nil
}

// AppendStatus appends one lifecycle event as its own unit of work.
func (r *Repository) AppendStatus(ctx context.Context, transactionID int64, status string) (StatusEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return StatusEvent{}, fmt.Errorf("transaction: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err := r.AppendStatusTx(ctx, tx, transactionID, status)
	if err != nil {
		return StatusEvent{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return StatusEvent{}, fmt.Errorf("transaction: commit status: %w", err)
	}
	return ev, nil
}

// CurrentStatus resolves the latest lifecycle event for a transaction.
func (r *Repository) CurrentStatus(ctx context.Context, transactionID int64) (StatusEvent, error) {
	const selectSQL = `
		SELECT id, transaction_id, status, status_change_date
		FROM transactions.status_history
		WHERE transaction_id = $1
		ORDER BY status_change_date DESC, id DESC
		LIMIT 1
	`

	var ev StatusEvent
	err := r.pool.QueryRow(ctx, selectSQL, transactionID).
		Scan(&ev.ID, &ev.TransactionID, &ev.Status, &ev.ChangeDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, eerr := r.exists(ctx, transactionID)
			if eerr != nil {
				return StatusEvent{}, eerr
			}
			if !exists {
				return StatusEvent{}, ErrUnknownTransaction
			}
			return StatusEvent{}, ErrNoStatus
		}
		return StatusEvent{}, fmt.Errorf("transaction: current status: %w", err)
	}
	return ev, nil
}

// StatusHistory returns the full lifecycle trail, oldest first.
func (r *Repository) StatusHistory(ctx context.Context, transactionID int64) ([]StatusEvent, error) {
	const selectSQL = `
		SELECT id, transaction_id, status, status_change_date
		FROM transactions.status_history
		WHERE transaction_id = $1
		ORDER BY status_change_date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, selectSQL, transactionID)
	if err != nil {
		return nil, fmt.Errorf("transaction: status history: %w", err)
	}
	defer rows.Close()

	out := make([]StatusEvent, 0, 8)
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.Status, &ev.ChangeDate); err != nil {
			return nil, fmt.Errorf("transaction: scan status: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate statuses: %w", err)
	}
	return out, nil
}

// Get fetches a transaction row by id.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	const selectSQL = `
		SELECT id, buyer_token, vendor_token, escrow_account_id, transaction_amount, description, opened_ts
		FROM transactions.transactions
		WHERE id = $1
	`

	var t Transaction
	err := r.pool.QueryRow(ctx, selectSQL, id).Scan(
		&t.ID, &t.BuyerToken, &t.VendorToken, &t.EscrowAccountID, &t.Amount, &t.Description, &t.OpenedTs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrUnknownTransaction
		}
		return Transaction{}, fmt.Errorf("transaction: get: %w", err)
	}
	return t, nil
}

// Search returns the joined party/escrow view for transactions between a
// buyer and vendor, optionally narrowed to an exact amount.
func (r *Repository) Search(ctx context.Context, buyerToken, vendorToken string, amount *decimal.Decimal) ([]View, error) {
	query := `
		SELECT t.id, t.buyer_token, bu.first_name, bu.last_name,
		       t.vendor_token, vu.first_name, vu.last_name, v.corp_name,
		       e.id, e.account_number, e.routing_number,
		       t.transaction_amount, t.description, t.opened_ts
		FROM transactions.transactions t
		JOIN users.user_info bu ON bu.user_token = t.buyer_token
		JOIN users.vendors v ON v.user_token = t.vendor_token
		JOIN users.user_info vu ON vu.user_token = t.vendor_token
		JOIN accounts.escrow e ON e.id = t.escrow_account_id
		WHERE t.buyer_token = $1 AND t.vendor_token = $2
	`
	args := []any{buyerToken, vendorToken}
	if amount != nil {
		query += " AND t.transaction_amount = $3"
		args = append(args, *amount)
	}
	query += " ORDER BY t.opened_ts DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction: search: %w", err)
	}
	defer rows.Close()

	out := make([]View, 0, 4)
	for rows.Next() {
		var v View
		if err := rows.Scan(
			&v.TransactionID, &v.BuyerToken, &v.BuyerFirstName, &v.BuyerLastName,
			&v.VendorToken, &v.VendorFirstName, &v.VendorLastName, &v.VendorCorpName,
			&v.EscrowAccountID, &v.EscrowAccountNumber, &v.EscrowRoutingNumber,
			&v.Amount, &v.Description, &v.OpenedTs,
		); err != nil {
			return nil, fmt.Errorf("transaction: scan view: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate views: %w", err)
	}
	return out, nil
}

// InsertContract attaches legal terms to a transaction.
func (r *Repository) InsertContract(ctx context.Context, transactionID int64, recitals, scope string) (Contract, error) {
	const insertSQL = `
		INSERT INTO transactions.contracts (transaction_id, recitals, scope_of_services)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	c := Contract{TransactionID: transactionID, Recitals: recitals, ScopeOfServices: scope}
	err := r.pool.QueryRow(ctx, insertSQL, transactionID, recitals, scope).Scan(&c.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return Contract{}, ErrUnknownTransaction
		}
		return Contract{}, fmt.Errorf("transaction: insert contract: %w", err)
	}
	return c, nil
}

// InsertDocument attaches an uploaded document to a transaction.
func (r *Repository) InsertDocument(ctx context.Context, d Document) (Document, error) {
	const insertSQL = `
		INSERT INTO transactions.documents (transaction_id, uploaded_user_token, s3_path, raw_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, insertSQL, d.TransactionID, d.UploaderToken, d.S3Path, d.RawText).Scan(&d.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err, "documents_transaction_id_fkey") {
			return Document{}, ErrUnknownTransaction
		}
		if db.IsForeignKeyViolation(err, "") {
			return Document{}, ErrUnknownPrincipal
		}
		return Document{}, fmt.Errorf("transaction: insert document: %w", err)
	}
	return d, nil
}

// ListDocuments returns the documents attached to a transaction.
func (r *Repository) ListDocuments(ctx context.Context, transactionID int64) ([]Document, error) {
	const selectSQL = `
		SELECT id, transaction_id, uploaded_user_token, s3_path, raw_text
		FROM transactions.documents
		WHERE transaction_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, selectSQL, transactionID)
	if err != nil {
		return nil, fmt.Errorf("transaction: list documents: %w", err)
	}
	defer rows.Close()

	out := make([]Document, 0, 4)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.TransactionID, &d.UploaderToken, &d.S3Path, &d.RawText); err != nil {
			return nil, fmt.Errorf("transaction: scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate documents: %w", err)
	}
	return out, nil
}

// ListContracts returns the contracts attached to a transaction.
func (r *Repository) ListContracts(ctx context.Context, transactionID int64) ([]Contract, error) {
	const selectSQL = `
		SELECT id, transaction_id, recitals, scope_of_services
		FROM transactions.contracts
		WHERE transaction_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, selectSQL, transactionID)
	if err != nil {
		return nil, fmt.Errorf("transaction: list contracts: %w", err)
	}
	defer rows.Close()

	out := make([]Contract, 0, 2)
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.Recitals, &c.ScopeOfServices); err != nil {
			return nil, fmt.Errorf("transaction: scan contract: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate contracts: %w", err)
	}
	return out, nil
}

func (r *Repository) exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM transactions.transactions WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transaction: exists: %w", err)
	}
	return true, nil
}
