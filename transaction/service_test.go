package transaction

import (
	"context"
	"errors"
	"testing"

	"escrowdesk/account"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func TestOpen_Success(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeOpenRepo{}
	accounts := &fakeAccounts{escrowID: 7}
	svc := newServiceForTest(pool, repo, accounts)

	res, err := svc.Open(context.Background(), OpenParams{
		BuyerToken:  "tok_buyer",
		VendorToken: "tok_vendor",
		Amount:      decimal.RequireFromString("100.00"),
		Description: "office build-out",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if pool.tx == nil || !pool.tx.committed {
		t.Fatalf("expected open to commit")
	}
	if res.EscrowAccountID != 7 {
		t.Errorf("expected escrow id 7, got %d", res.EscrowAccountID)
	}
	if res.TransactionID != repo.insertedID {
		t.Errorf("expected transaction id %d, got %d", repo.insertedID, res.TransactionID)
	}
	if repo.appendedStatus != StatusOpened {
		t.Errorf("expected initial status %q, got %q", StatusOpened, repo.appendedStatus)
	}
}

func TestOpen_UnknownBuyerRollsBack(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeOpenRepo{buyerErr: ErrUnknownPrincipal}
	accounts := &fakeAccounts{}
	svc := newServiceForTest(pool, repo, accounts)

	_, err := svc.Open(context.Background(), OpenParams{
		BuyerToken:  "tok_missing",
		VendorToken: "tok_vendor",
		Amount:      decimal.RequireFromString("50.00"),
	})
	if !errors.Is(err, ErrUnknownPrincipal) {
		t.Fatalf("expected ErrUnknownPrincipal, got %v", err)
	}

	if pool.tx == nil || !pool.tx.rolled || pool.tx.committed {
		t.Fatalf("expected rollback without commit")
	}
	if accounts.escrowCreated {
		t.Errorf("expected no escrow creation after buyer check failed")
	}
}

func TestOpen_DuplicateEscrowIdentityPropagates(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeOpenRepo{}
	accounts := &fakeAccounts{escrowErr: account.ErrDuplicateEscrowIdentity}
	svc := newServiceForTest(pool, repo, accounts)

	_, err := svc.Open(context.Background(), OpenParams{
		BuyerToken:  "tok_buyer",
		VendorToken: "tok_vendor",
		Amount:      decimal.RequireFromString("25.00"),
	})
	if !errors.Is(err, account.ErrDuplicateEscrowIdentity) {
		t.Fatalf("expected ErrDuplicateEscrowIdentity, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected commit to be skipped")
	}
	if repo.insertCalled {
		t.Errorf("expected transaction insert to be skipped after escrow failure")
	}
}

func TestOpen_RejectsBadArguments(t *testing.T) {
	svc := newServiceForTest(&fakePool{}, &fakeOpenRepo{}, &fakeAccounts{})

	cases := []OpenParams{
		{BuyerToken: "", VendorToken: "tok_v", Amount: decimal.RequireFromString("1.00")},
		{BuyerToken: "tok_same", VendorToken: "tok_same", Amount: decimal.RequireFromString("1.00")},
		{BuyerToken: "tok_b", VendorToken: "tok_v", Amount: decimal.Zero},
	}
	for _, params := range cases {
		if _, err := svc.Open(context.Background(), params); err == nil {
			t.Errorf("expected error for params %+v", params)
		}
	}
}

type fakeOpenRepo struct {
	buyerErr       error
	vendorErr      error
	insertCalled   bool
	insertedID     int64
	appendedStatus string
}

func (f *fakeOpenRepo) EnsureBuyerTx(ctx context.Context, tx pgx.Tx, token string) error {
	return f.buyerErr
}

func (f *fakeOpenRepo) EnsureVendorTx(ctx context.Context, tx pgx.Tx, token string) error {
	return f.vendorErr
}

func (f *fakeOpenRepo) InsertTx(ctx context.Context, tx pgx.Tx, params OpenParams, escrowAccountID int64) (int64, error) {
	f.insertCalled = true
	f.insertedID = 42
	return f.insertedID, nil
}

func (f *fakeOpenRepo) AppendStatusTx(ctx context.Context, tx pgx.Tx, transactionID int64, status string) (StatusEvent, error) {
	f.appendedStatus = status
	return StatusEvent{ID: 1, TransactionID: transactionID, Status: status}, nil
}

type fakeAccounts struct {
	escrowID      int64
	escrowErr     error
	escrowCreated bool
}

func (f *fakeAccounts) BankAccountIDTx(ctx context.Context, tx pgx.Tx, token string) (int64, error) {
	return 1, nil
}

func (f *fakeAccounts) CreateEscrowTx(ctx context.Context, tx pgx.Tx, sourceID, destID int64) (account.EscrowAccount, error) {
	if f.escrowErr != nil {
		return account.EscrowAccount{}, f.escrowErr
	}
	f.escrowCreated = true
	return account.EscrowAccount{ID: f.escrowID, SourceAccountID: sourceID, DestAccountID: destID}, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
