package identity

import "time"

// Credential is the root identity record. Every principal-owned row in the
// ledger hangs off a credential token; deleting the credential cascades.
type Credential struct {
	Token    string
	IssuedAt time.Time
}

// UserProfile mirrors the users.user_info table. It is the optional 1:1
// personal extension of a credential token.
type UserProfile struct {
	Token          string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Address        *string
	City           *string
	State          *string
	ZipCode        *string
	IDDocumentPath *string
}

// VendorProfile mirrors the users.vendors table, the corporate 1:1
// extension of a credential token.
type VendorProfile struct {
	Token    string
	CorpName string
	NStrikes int
}

// AdminToken identifies an elevated principal. Admin tokens live outside the
// credential hierarchy and are stored hashed.
type AdminToken struct {
	ID       int64
	Label    string
	IssuedAt time.Time
}

// RegisterUserParams carries the profile and bank details registered in a
// single unit when a buyer signs up.
type RegisterUserParams struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Address        *string
	City           *string
	State          *string
	ZipCode        *string
	IDDocumentPath *string
	AccountNumber  string
	RoutingNumber  string
}

// RegisterVendorParams extends user registration with corporate details.
type RegisterVendorParams struct {
	RegisterUserParams
	CorpName string
}
