package test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"escrowdesk/account"
	"escrowdesk/dispute"
	"escrowdesk/evidence"
	"escrowdesk/identity"
	"escrowdesk/maintenance"
	"escrowdesk/test/infra"
	"escrowdesk/transaction"

	"github.com/shopspring/decimal"
)

type ledgerServices struct {
	harness      *infra.Harness
	identity     *identity.Service
	accounts     *account.Repository
	transactions *transaction.Service
	disputes     *dispute.Service
	evidence     *evidence.Service
	resetter     *maintenance.Resetter
}

func newLedger(t *testing.T, ctx context.Context) *ledgerServices {
	t.Helper()

	if os.Getenv("LEDGER_TEST_PG_DSN") == "" && !dockerAvailable(ctx) {
		t.Skip("no docker and no LEDGER_TEST_PG_DSN; skipping integration test")
	}

	h, err := infra.NewHarness(ctx)
	if err != nil {
		t.Fatalf("start harness: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.Close(cleanupCtx)
	})

	pool := h.Pool()
	accounts := account.NewRepository(pool)
	return &ledgerServices{
		harness:      h,
		identity:     identity.NewService(pool, identity.NewRepository(pool), accounts, "test-secret"),
		accounts:     accounts,
		transactions: transaction.NewService(pool, transaction.NewRepository(pool), accounts),
		disputes:     dispute.NewService(dispute.NewRepository(pool)),
		evidence:     evidence.NewService(evidence.NewRepository(pool)),
		resetter:     maintenance.NewResetter(pool),
	}
}

func dockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "info")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

var partySeq atomic.Int64

// registerParties creates a buyer and a vendor with bank accounts.
func registerParties(t *testing.T, ctx context.Context, svc *identity.Service) (string, string) {
	t.Helper()

	n := partySeq.Add(1)
	buyer, err := svc.RegisterUser(ctx, identity.RegisterUserParams{
		FirstName:     "blake",
		LastName:      "buyer",
		Email:         fmt.Sprintf("buyer%d@example.com", n),
		PhoneNumber:   fmt.Sprintf("555-01%02d", n%100),
		AccountNumber: "111000111",
		RoutingNumber: "021000021",
	})
	if err != nil {
		t.Fatalf("register buyer: %v", err)
	}

	vendor, err := svc.RegisterVendor(ctx, identity.RegisterVendorParams{
		RegisterUserParams: identity.RegisterUserParams{
			FirstName:     "vera",
			LastName:      "vendor",
			Email:         fmt.Sprintf("vendor%d@example.com", n),
			PhoneNumber:   fmt.Sprintf("555-02%02d", n%100),
			AccountNumber: "222000222",
			RoutingNumber: "021000021",
		},
		CorpName: "vendor corp",
	})
	if err != nil {
		t.Fatalf("register vendor: %v", err)
	}
	return buyer, vendor
}

func TestLedgerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	l := newLedger(t, ctx)
	pool := l.harness.Pool()
	amount := decimal.RequireFromString("100.00")

	buyer, vendor := registerParties(t, ctx, l.identity)

	res, err := l.transactions.Open(ctx, transaction.OpenParams{
		BuyerToken:  buyer,
		VendorToken: vendor,
		Amount:      amount,
		Description: "item not yet delivered",
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}

	t.Run("duplicate contact details conflict", func(t *testing.T) {
		base := identity.RegisterUserParams{
			FirstName:     "dana",
			LastName:      "dupe",
			Email:         "dana@example.com",
			PhoneNumber:   "555-0900",
			AccountNumber: "333000333",
			RoutingNumber: "021000021",
		}
		if _, err := l.identity.RegisterUser(ctx, base); err != nil {
			t.Fatalf("register first user: %v", err)
		}

		// Emails are lowercased before the unique check.
		sameEmail := base
		sameEmail.Email = "Dana@Example.COM"
		sameEmail.PhoneNumber = "555-0901"
		if _, err := l.identity.RegisterUser(ctx, sameEmail); !errors.Is(err, identity.ErrDuplicateContact) {
			t.Fatalf("expected ErrDuplicateContact for reused email, got %v", err)
		}

		samePhone := base
		samePhone.Email = "dana2@example.com"
		if _, err := l.identity.RegisterUser(ctx, samePhone); !errors.Is(err, identity.ErrDuplicateContact) {
			t.Fatalf("expected ErrDuplicateContact for reused phone, got %v", err)
		}
	})

	t.Run("escrow is one-to-one with the transaction", func(t *testing.T) {
		esc, err := l.accounts.GetEscrow(ctx, res.EscrowAccountID)
		if err != nil {
			t.Fatalf("get escrow: %v", err)
		}
		if len(esc.AccountNumber) != 9 || len(esc.RoutingNumber) != 9 {
			t.Errorf("expected 9-digit escrow identity, got %q/%q", esc.AccountNumber, esc.RoutingNumber)
		}

		var owners int
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM transactions.transactions WHERE escrow_account_id = $1`,
			res.EscrowAccountID,
		).Scan(&owners); err != nil {
			t.Fatalf("count escrow owners: %v", err)
		}
		if owners != 1 {
			t.Fatalf("expected exactly one transaction on escrow %d, got %d", res.EscrowAccountID, owners)
		}
	})

	t.Run("status history is append-only", func(t *testing.T) {
		cur, err := l.transactions.CurrentStatus(ctx, res.TransactionID)
		if err != nil {
			t.Fatalf("current status: %v", err)
		}
		if cur.Status != transaction.StatusOpened {
			t.Fatalf("expected initial status %q, got %q", transaction.StatusOpened, cur.Status)
		}

		if _, err := l.transactions.AdvanceStatus(ctx, res.TransactionID, transaction.StatusFundsReleased); err != nil {
			t.Fatalf("advance status: %v", err)
		}

		cur, err = l.transactions.CurrentStatus(ctx, res.TransactionID)
		if err != nil {
			t.Fatalf("current status after advance: %v", err)
		}
		if cur.Status != transaction.StatusFundsReleased {
			t.Fatalf("expected %q, got %q", transaction.StatusFundsReleased, cur.Status)
		}

		history, err := l.transactions.StatusHistory(ctx, res.TransactionID)
		if err != nil {
			t.Fatalf("status history: %v", err)
		}
		if len(history) != 2 || history[0].Status != transaction.StatusOpened {
			t.Fatalf("expected opened row to remain in history, got %+v", history)
		}

		if _, err := l.transactions.AdvanceStatus(ctx, 999999, transaction.StatusClosed); !errors.Is(err, transaction.ErrUnknownTransaction) {
			t.Fatalf("expected ErrUnknownTransaction, got %v", err)
		}
	})

	t.Run("contract and document attach", func(t *testing.T) {
		if _, err := l.transactions.AttachContract(ctx, res.TransactionID, "whereas the parties agree", "delivery of goods"); err != nil {
			t.Fatalf("attach contract: %v", err)
		}
		doc, err := l.transactions.AttachDocument(ctx, transaction.Document{
			TransactionID: res.TransactionID,
			UploaderToken: buyer,
			S3Path:        "s3://docs/receipt.pdf",
			RawText:       "receipt for item",
		})
		if err != nil {
			t.Fatalf("attach document: %v", err)
		}
		if doc.ID == 0 {
			t.Fatalf("expected document id to be assigned")
		}

		if _, err := l.transactions.AttachDocument(ctx, transaction.Document{
			TransactionID: 999999,
			UploaderToken: buyer,
			S3Path:        "s3://docs/orphan.pdf",
		}); !errors.Is(err, transaction.ErrUnknownTransaction) {
			t.Fatalf("expected ErrUnknownTransaction, got %v", err)
		}
	})

	t.Run("duplicate dispute filing conflicts", func(t *testing.T) {
		params := dispute.OpenParams{
			TransactionID: res.TransactionID,
			BuyerToken:    buyer,
			VendorToken:   vendor,
			Description:   "item not received",
			Amount:        amount,
		}

		first, err := l.disputes.Open(ctx, params)
		if err != nil {
			t.Fatalf("open dispute: %v", err)
		}
		if first.ClosedTs != nil {
			t.Fatalf("expected fresh dispute to be open")
		}

		if _, err := l.disputes.Open(ctx, params); !errors.Is(err, dispute.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		// A different amount is a different claim.
		params.Amount = decimal.RequireFromString("50.00")
		if _, err := l.disputes.Open(ctx, params); err != nil {
			t.Fatalf("open second claim: %v", err)
		}

		t.Run("close is monotonic", func(t *testing.T) {
			closed, err := l.disputes.Close(ctx, first.ID)
			if err != nil {
				t.Fatalf("close dispute: %v", err)
			}
			if closed.ClosedTs == nil {
				t.Fatalf("expected closed_ts to be set")
			}

			if _, err := l.disputes.Close(ctx, first.ID); !errors.Is(err, dispute.ErrAlreadyClosed) {
				t.Fatalf("expected ErrAlreadyClosed, got %v", err)
			}
			if _, err := l.disputes.Close(ctx, 999999); !errors.Is(err, dispute.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("evidence dedup per modality", func(t *testing.T) {
			img, err := l.evidence.AttachImage(ctx, first.ID, buyer, "s3://evidence/photo.jpg", []byte("the-photo"))
			if err != nil {
				t.Fatalf("attach image: %v", err)
			}
			if img.ID == 0 {
				t.Fatalf("expected image id to be assigned")
			}
			if _, err := l.evidence.AttachImage(ctx, first.ID, buyer, "s3://evidence/photo-again.jpg", []byte("the-photo")); !errors.Is(err, evidence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate on identical image content, got %v", err)
			}

			if _, err := l.evidence.AttachEmail(ctx, first.ID, buyer, "buyer@example.com", "vendor@example.com", "no delivery", "where is my item"); err != nil {
				t.Fatalf("attach email: %v", err)
			}
			if _, err := l.evidence.AttachEmail(ctx, first.ID, buyer, "buyer@example.com", "vendor@example.com", "no delivery", "where is my item"); !errors.Is(err, evidence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate on identical email, got %v", err)
			}

			if _, err := l.evidence.AttachText(ctx, first.ID, buyer, "555-0100", "555-0200", "still waiting on delivery"); err != nil {
				t.Fatalf("attach text: %v", err)
			}
			if _, err := l.evidence.AttachText(ctx, first.ID, buyer, "555-0100", "555-0200", "still waiting on delivery"); !errors.Is(err, evidence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate on identical text, got %v", err)
			}

			if _, err := l.evidence.AttachVideo(ctx, first.ID, buyer, "s3://evidence/unboxing.mp4"); err != nil {
				t.Fatalf("attach video: %v", err)
			}
			if _, err := l.evidence.AttachVideo(ctx, first.ID, buyer, "s3://evidence/unboxing.mp4"); !errors.Is(err, evidence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate on identical video path, got %v", err)
			}

			if _, err := l.evidence.AttachImage(ctx, 999999, buyer, "s3://evidence/x.jpg", []byte("x")); !errors.Is(err, evidence.ErrUnknownCase) {
				t.Fatalf("expected ErrUnknownCase, got %v", err)
			}

			items, err := l.evidence.ListByCase(ctx, first.ID)
			if err != nil {
				t.Fatalf("list evidence: %v", err)
			}
			if len(items) != 4 {
				t.Fatalf("expected 4 evidence items, got %d", len(items))
			}
		})
	})

	t.Run("credential delete cascades everywhere", func(t *testing.T) {
		if err := l.identity.DeleteCredential(ctx, buyer); err != nil {
			t.Fatalf("delete credential: %v", err)
		}

		checks := map[string]string{
			"user_info":    `SELECT COUNT(*) FROM users.user_info WHERE user_token = $1`,
			"bank_account": `SELECT COUNT(*) FROM accounts.bank_accounts WHERE user_token = $1`,
			"transactions": `SELECT COUNT(*) FROM transactions.transactions WHERE buyer_token = $1`,
			"disputes":     `SELECT COUNT(*) FROM cases.disputes WHERE buyer_token = $1`,
			"images":       `SELECT COUNT(*) FROM evidence.images WHERE user_token = $1`,
		}
		for name, query := range checks {
			var count int
			if err := pool.QueryRow(ctx, query, buyer).Scan(&count); err != nil {
				t.Fatalf("check %s: %v", name, err)
			}
			if count != 0 {
				t.Errorf("expected no %s rows for deleted credential, found %d", name, count)
			}
		}
	})

	t.Run("reset restores the initial state", func(t *testing.T) {
		if err := l.resetter.ResetDemoState(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		// Idempotent: a second reset succeeds on the already-empty store.
		if err := l.resetter.ResetDemoState(ctx); err != nil {
			t.Fatalf("second reset: %v", err)
		}

		var credentials int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users.credentials`).Scan(&credentials); err != nil {
			t.Fatalf("count credentials: %v", err)
		}
		if credentials != 0 {
			t.Fatalf("expected empty credential table after reset, got %d", credentials)
		}

		// Sequences restart: the first post-reset transaction gets id 1.
		b2, v2 := registerParties(t, ctx, l.identity)
		res2, err := l.transactions.Open(ctx, transaction.OpenParams{
			BuyerToken:  b2,
			VendorToken: v2,
			Amount:      decimal.RequireFromString("10.00"),
			Description: "post-reset",
		})
		if err != nil {
			t.Fatalf("open after reset: %v", err)
		}
		if res2.TransactionID != 1 || res2.EscrowAccountID != 1 {
			t.Fatalf("expected ids to restart at 1, got transaction=%d escrow=%d",
				res2.TransactionID, res2.EscrowAccountID)
		}
	})
}

func TestConcurrentDuplicateFilings(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	l := newLedger(t, ctx)
	buyer, vendor := registerParties(t, ctx, l.identity)

	res, err := l.transactions.Open(ctx, transaction.OpenParams{
		BuyerToken:  buyer,
		VendorToken: vendor,
		Amount:      decimal.RequireFromString("75.00"),
		Description: "raced",
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}

	params := dispute.OpenParams{
		TransactionID: res.TransactionID,
		BuyerToken:    buyer,
		VendorToken:   vendor,
		Description:   "raced claim",
		Amount:        decimal.RequireFromString("75.00"),
	}

	const racers = 8
	var created atomic.Int64
	var duplicates atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			_, err := l.disputes.Open(gctx, params)
			switch {
			case err == nil:
				created.Add(1)
				return nil
			case errors.Is(err, dispute.ErrDuplicate):
				duplicates.Add(1)
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent filings: %v", err)
	}

	if created.Load() != 1 {
		t.Fatalf("expected exactly one filing to win, got %d", created.Load())
	}
	if duplicates.Load() != racers-1 {
		t.Fatalf("expected %d duplicate losers, got %d", racers-1, duplicates.Load())
	}
}
