package account

// BankAccount mirrors the accounts.bank_accounts table. The routing and
// account numbers are external identifiers only; no settlement happens here.
type BankAccount struct {
	ID            int64
	UserToken     string
	AccountNumber string
	RoutingNumber string
}

// EscrowAccount is the custodial account created for exactly one
// transaction, pairing a source and a destination bank account.
type EscrowAccount struct {
	ID              int64
	AccountNumber   string
	RoutingNumber   string
	SourceAccountID int64
	DestAccountID   int64
}
