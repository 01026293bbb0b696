package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle statuses recorded in the append-only status history. The set is
// open-ended; these are the values the platform itself writes.
const (
	StatusOpened         = "opened"
	StatusFundsDeposited = "funds_deposited"
	StatusDisputed       = "disputed"
	StatusFundsReleased  = "funds_released"
	StatusClosed         = "closed"
)

// Transaction mirrors the transactions.transactions table.
type Transaction struct {
	ID              int64
	BuyerToken      string
	VendorToken     string
	EscrowAccountID int64
	Amount          decimal.Decimal
	Description     string
	OpenedTs        time.Time
}

// StatusEvent is one row of the append-only lifecycle log. Rows are never
// updated; the current status is the latest by change date, ties broken by
// highest id.
type StatusEvent struct {
	ID            int64
	TransactionID int64
	Status        string
	ChangeDate    time.Time
}

// Contract holds the legal terms attached to a transaction.
type Contract struct {
	ID              int64
	TransactionID   int64
	Recitals        string
	ScopeOfServices string
}

// Document is an uploaded transaction document with its extracted text.
type Document struct {
	ID            int64
	TransactionID int64
	UploaderToken string
	S3Path        string
	RawText       string
}

// OpenParams carries everything needed to open a transaction.
type OpenParams struct {
	BuyerToken  string
	VendorToken string
	Amount      decimal.Decimal
	Description string
}

// OpenResult reports the rows created by a successful open.
type OpenResult struct {
	TransactionID   int64
	EscrowAccountID int64
}

// View is the joined read model for transaction search, matching what the
// conversational and HTTP collaborators display.
type View struct {
	TransactionID       int64
	BuyerToken          string
	BuyerFirstName      string
	BuyerLastName       string
	VendorToken         string
	VendorFirstName     string
	VendorLastName      string
	VendorCorpName      string
	EscrowAccountID     int64
	EscrowAccountNumber string
	EscrowRoutingNumber string
	Amount              decimal.Decimal
	Description         string
	OpenedTs            time.Time
}
