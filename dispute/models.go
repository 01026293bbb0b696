package dispute

import (
	"time"

	"github.com/shopspring/decimal"
)

// Case mirrors the cases.disputes table. closed_ts is null while the
// dispute is open; closing is monotonic, there is no reopening path.
type Case struct {
	ID            int64
	TransactionID int64
	BuyerToken    string
	VendorToken   string
	Description   string
	Amount        decimal.Decimal
	OpenedTs      time.Time
	ClosedTs      *time.Time
}

// OpenParams identifies the claim a dispute is filed over. The
// (transaction, buyer, vendor, amount) tuple is the idempotency guard
// against duplicate filings.
type OpenParams struct {
	TransactionID int64
	BuyerToken    string
	VendorToken   string
	Description   string
	Amount        decimal.Decimal
}
