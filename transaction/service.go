package transaction

import (
	"context"
	"fmt"

	"escrowdesk/account"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OpenRepository defines the data access the open flow needs.
type OpenRepository interface {
	EnsureBuyerTx(ctx context.Context, tx pgx.Tx, token string) error
	EnsureVendorTx(ctx context.Context, tx pgx.Tx, token string) error
	InsertTx(ctx context.Context, tx pgx.Tx, params OpenParams, escrowAccountID int64) (int64, error)
	AppendStatusTx(ctx context.Context, tx pgx.Tx, transactionID int64, status string) (StatusEvent, error)
}

// EscrowCreator defines the account-side writes the open flow needs.
type EscrowCreator interface {
	BankAccountIDTx(ctx context.Context, tx pgx.Tx, token string) (int64, error)
	CreateEscrowTx(ctx context.Context, tx pgx.Tx, sourceID, destID int64) (account.EscrowAccount, error)
}

// Service orchestrates the transaction lifecycle.
type Service struct {
	pool     TxBeginner
	repo     *Repository
	openRepo OpenRepository
	accounts EscrowCreator
}

// NewService creates a new transaction service.
func NewService(pool TxBeginner, repo *Repository, accounts EscrowCreator) *Service {
	return &Service{pool: pool, repo: repo, openRepo: repo, accounts: accounts}
}

// newServiceForTest wires fake collaborators in place of the repositories.
func newServiceForTest(pool TxBeginner, openRepo OpenRepository, accounts EscrowCreator) *Service {
	return &Service{pool: pool, openRepo: openRepo, accounts: accounts}
}

// Open creates the escrow account, the transaction referencing it, and the
// initial "opened" status row as one atomic unit. Partial creation is never
// observable: any failure rolls the whole set of writes back.
func (s *Service) Open(ctx context.Context, params OpenParams) (OpenResult, error) {
	if params.BuyerToken == "" || params.VendorToken == "" {
		return OpenResult{}, fmt.Errorf("transaction: buyer and vendor tokens are required")
	}
	if params.BuyerToken == params.VendorToken {
		return OpenResult{}, fmt.Errorf("transaction: buyer and vendor must differ")
	}
	if !params.Amount.IsPositive() {
		return OpenResult{}, fmt.Errorf("transaction: amount must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OpenResult{}, fmt.Errorf("transaction: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.openRepo.EnsureBuyerTx(ctx, tx, params.BuyerToken); err != nil {
		return OpenResult{}, err
	}
	if err := s.openRepo.EnsureVendorTx(ctx, tx, params.VendorToken); err != nil {
		return OpenResult{}, err
	}

	sourceID, err := s.accounts.BankAccountIDTx(ctx, tx, params.BuyerToken)
	if err != nil {
		return OpenResult{}, err
	}
	destID, err := s.accounts.BankAccountIDTx(ctx, tx, params.VendorToken)
	if err != nil {
		return OpenResult{}, err
	}

	esc, err := s.accounts.CreateEscrowTx(ctx, tx, sourceID, destID)
	if err != nil {
		return OpenResult{}, err
	}

	id, err := s.openRepo.InsertTx(ctx, tx, params, esc.ID)
	if err != nil {
		return OpenResult{}, err
	}
	if _, err := s.openRepo.AppendStatusTx(ctx, tx, id, StatusOpened); err != nil {
		return OpenResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return OpenResult{}, fmt.Errorf("transaction: commit open: %w", err)
	}
	return OpenResult{TransactionID: id, EscrowAccountID: esc.ID}, nil
}

// AdvanceStatus appends one lifecycle event. Prior rows are never touched.
func (s *Service) AdvanceStatus(ctx context.Context, transactionID int64, status string) (StatusEvent, error) {
	if status == "" {
		return StatusEvent{}, fmt.Errorf("transaction: status is required")
	}
	return s.repo.AppendStatus(ctx, transactionID, status)
}

// CurrentStatus resolves the latest lifecycle event.
func (s *Service) CurrentStatus(ctx context.Context, transactionID int64) (StatusEvent, error) {
	return s.repo.CurrentStatus(ctx, transactionID)
}

// StatusHistory returns the full lifecycle trail, oldest first.
func (s *Service) StatusHistory(ctx context.Context, transactionID int64) ([]StatusEvent, error) {
	return s.repo.StatusHistory(ctx, transactionID)
}

// Get fetches a transaction by id.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// Search returns the joined party/escrow view for a buyer/vendor pair.
func (s *Service) Search(ctx context.Context, buyerToken, vendorToken string, amount *decimal.Decimal) ([]View, error) {
	return s.repo.Search(ctx, buyerToken, vendorToken, amount)
}

// AttachContract attaches legal terms to a transaction.
func (s *Service) AttachContract(ctx context.Context, transactionID int64, recitals, scope string) (Contract, error) {
	if recitals == "" || scope == "" {
		return Contract{}, fmt.Errorf("transaction: recitals and scope of services are required")
	}
	return s.repo.InsertContract(ctx, transactionID, recitals, scope)
}

// AttachDocument attaches an uploaded document to a transaction.
func (s *Service) AttachDocument(ctx context.Context, d Document) (Document, error) {
	if d.S3Path == "" {
		return Document{}, fmt.Errorf("transaction: document s3 path is required")
	}
	return s.repo.InsertDocument(ctx, d)
}

// Documents lists the documents attached to a transaction.
func (s *Service) Documents(ctx context.Context, transactionID int64) ([]Document, error) {
	return s.repo.ListDocuments(ctx, transactionID)
}

// Contracts lists the contracts attached to a transaction.
func (s *Service) Contracts(ctx context.Context, transactionID int64) ([]Contract, error) {
	return s.repo.ListContracts(ctx, transactionID)
}
