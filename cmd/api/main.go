package main

import (
	"context"
	"log"
	"os"

	"escrowdesk/account"
	"escrowdesk/db"
	"escrowdesk/dispute"
	"escrowdesk/evidence"
	"escrowdesk/identity"
	"escrowdesk/maintenance"
	"escrowdesk/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

// services is the ledger graph the transport collaborators consume.
type services struct {
	identity     *identity.Service
	transactions *transaction.Service
	disputes     *dispute.Service
	evidence     *evidence.Service
	resetter     *maintenance.Resetter
}

func buildServices(pool *pgxpool.Pool) services {
	accounts := account.NewRepository(pool)
	return services{
		identity:     identity.NewService(pool, identity.NewRepository(pool), accounts, os.Getenv("LEDGER_JWT_SECRET")),
		transactions: transaction.NewService(pool, transaction.NewRepository(pool), accounts),
		disputes:     dispute.NewService(dispute.NewRepository(pool)),
		evidence:     evidence.NewService(evidence.NewRepository(pool)),
		resetter:     maintenance.NewResetter(pool),
	}
}

func main() {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"), db.DefaultMaxConns)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	buildServices(pool)
	log.Print("ledger services ready")
}
