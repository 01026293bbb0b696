package dispute

import (
	"context"
	"fmt"
)

// Service handles dispute case business logic.
type Service struct {
	repo *Repository
}

// NewService creates a new dispute service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Open files a dispute against a transaction. A repeated filing for the
// identical claim tuple fails with ErrDuplicate; legitimate repeated
// disputes over different amounts are allowed.
func (s *Service) Open(ctx context.Context, params OpenParams) (Case, error) {
	if params.BuyerToken == "" || params.VendorToken == "" {
		return Case{}, fmt.Errorf("dispute: buyer and vendor tokens are required")
	}
	if !params.Amount.IsPositive() {
		return Case{}, fmt.Errorf("dispute: amount must be positive")
	}
	return s.repo.Create(ctx, params)
}

// Close closes a dispute. Closing is monotonic; renewed contention needs a
// new dispute.
func (s *Service) Close(ctx context.Context, id int64) (Case, error) {
	return s.repo.Close(ctx, id)
}

// Get fetches a dispute by id.
func (s *Service) Get(ctx context.Context, id int64) (Case, error) {
	return s.repo.Get(ctx, id)
}

// ListByTransaction returns the disputes filed against a transaction.
func (s *Service) ListByTransaction(ctx context.Context, transactionID int64) ([]Case, error) {
	return s.repo.ListByTransaction(ctx, transactionID)
}
