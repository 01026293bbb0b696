package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNoBankAccount signals the token has no registered bank account.
	ErrNoBankAccount = errors.New("account: no bank account for token")
	// ErrAccountExists signals the token already has an active bank account.
	ErrAccountExists = errors.New("account: bank account already registered")
	// ErrUnknownPrincipal signals the token has no credential.
	ErrUnknownPrincipal = errors.New("account: unknown principal")
	// ErrDuplicateEscrowIdentity signals the generated escrow
	// (account_number, routing_number) pair collided. Callers retry.
	ErrDuplicateEscrowIdentity = errors.New("account: duplicate escrow identity")
	// ErrEscrowNotFound signals the escrow account does not exist.
	ErrEscrowNotFound = errors.New("account: escrow account not found")
)

// Repository handles data access for bank and escrow accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBankAccountTx registers the single active bank account for a token
// inside the active transaction.
func (r *Repository) InsertBankAccountTx(ctx context.Context, tx pgx.Tx, token, accountNumber, routingNumber string) (int64, error) {
	const insertSQL = `
		INSERT INTO accounts.bank_accounts (user_token, account_number, routing_number)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, insertSQL, token, accountNumber, routingNumber).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return 0, ErrAccountExists
		}
		if db.IsForeignKeyViolation(err, "") {
			return 0, ErrUnknownPrincipal
		}
		return 0, fmt.Errorf("account: insert bank account: %w", err)
	}
	return id, nil
}

// RegisterBankAccount registers a bank account outside a broader unit of work.
func (r *Repository) RegisterBankAccount(ctx context.Context, token, accountNumber, routingNumber string) (BankAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return BankAccount{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := r.InsertBankAccountTx(ctx, tx, token, accountNumber, routingNumber)
	if err != nil {
		return BankAccount{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return BankAccount{}, fmt.Errorf("account: commit: %w", err)
	}

	return BankAccount{ID: id, UserToken: token, AccountNumber: accountNumber, RoutingNumber: routingNumber}, nil
}

// GetBankAccount retrieves the active bank account for a token.
func (r *Repository) GetBankAccount(ctx context.Context, token string) (BankAccount, error) {
	const selectSQL = `
		SELECT id, user_token, account_number, routing_number
		FROM accounts.bank_accounts
		WHERE user_token = $1
	`

	var acct BankAccount
	err := r.pool.QueryRow(ctx, selectSQL, token).Scan(&acct.ID, &acct.UserToken, &acct.AccountNumber, &acct.RoutingNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, ErrNoBankAccount
		}
		return BankAccount{}, fmt.Errorf("account: get bank account: %w", err)
	}
	return acct, nil
}

// BankAccountIDTx resolves the bank account id for a token inside the active
// transaction.
func (r *Repository) BankAccountIDTx(ctx context.Context, tx pgx.Tx, token string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM accounts.bank_accounts WHERE user_token = $1`, token).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoBankAccount
		}
		return 0, fmt.Errorf("account: bank account id: %w", err)
	}
	return id, nil
}

// CreateEscrowTx creates the custodial escrow account for a transaction
// inside the active transaction. The escrow identity is generated fresh on
// every call; a collision surfaces as ErrDuplicateEscrowIdentity and the
// caller retries with new identifiers.
func (r *Repository) CreateEscrowTx(ctx context.Context, tx pgx.Tx, sourceID, destID int64) (EscrowAccount, error) {
	const insertSQL = `
		INSERT INTO accounts.escrow (account_number, routing_number, source_account_id, dest_account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	esc := EscrowAccount{
		AccountNumber:   generateNineDigits(),
		RoutingNumber:   generateNineDigits(),
		SourceAccountID: sourceID,
		DestAccountID:   destID,
	}

	err := tx.QueryRow(ctx, insertSQL, esc.AccountNumber, esc.RoutingNumber, sourceID, destID).Scan(&esc.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return EscrowAccount{}, ErrDuplicateEscrowIdentity
		}
		if db.IsForeignKeyViolation(err, "") {
			return EscrowAccount{}, ErrNoBankAccount
		}
		return EscrowAccount{}, fmt.Errorf("account: create escrow: %w", err)
	}
	return esc, nil
}

// GetEscrow retrieves an escrow account by id.
func (r *Repository) GetEscrow(ctx context.Context, id int64) (EscrowAccount, error) {
	const selectSQL = `
		SELECT id, account_number, routing_number, source_account_id, dest_account_id
		FROM accounts.escrow
		WHERE id = $1
	`

	var esc EscrowAccount
	err := r.pool.QueryRow(ctx, selectSQL, id).Scan(&esc.ID, &esc.AccountNumber, &esc.RoutingNumber, &esc.SourceAccountID, &esc.DestAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EscrowAccount{}, ErrEscrowNotFound
		}
		return EscrowAccount{}, fmt.Errorf("account: get escrow: %w", err)
	}
	return esc, nil
}

// generateNineDigits produces a random 9-digit external account identifier.
func generateNineDigits() string {
	return fmt.Sprintf("%09d", rand.Uint64N(1_000_000_000))
}
