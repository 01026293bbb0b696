package identity

import (
	"context"
	"errors"
	"fmt"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnknownPrincipal signals the referenced token has no credential.
	ErrUnknownPrincipal = errors.New("identity: unknown principal")
	// ErrNotAVendor signals the token exists but carries no vendor profile.
	ErrNotAVendor = errors.New("identity: not a vendor")
	// ErrDuplicateContact signals the email or phone number is already registered.
	ErrDuplicateContact = errors.New("identity: email or phone already registered")
	// ErrDuplicateToken signals a credential already exists for the token.
	ErrDuplicateToken = errors.New("identity: token already registered")
	// ErrUnknownAdminToken signals the admin token does not exist or does not match.
	ErrUnknownAdminToken = errors.New("identity: unknown admin token")
)

// Repository handles data access for credentials, profiles, and admin tokens.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed identity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateCredentialTx inserts the root credential row inside the active transaction.
func (r *Repository) CreateCredentialTx(ctx context.Context, tx pgx.Tx, token string) error {
	_, err := tx.Exec(ctx, `INSERT INTO users.credentials (token) VALUES ($1)`, token)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrDuplicateToken
		}
		return fmt.Errorf("identity: create credential: %w", err)
	}
	return nil
}

// InsertUserProfileTx inserts the 1:1 personal profile for a token.
func (r *Repository) InsertUserProfileTx(ctx context.Context, tx pgx.Tx, p UserProfile) error {
	const insertSQL = `
		INSERT INTO users.user_info
			(user_token, first_name, last_name, email, phone_number, address, city, state, zip_code, id_document_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, insertSQL,
		p.Token, p.FirstName, p.LastName, p.Email, p.PhoneNumber,
		p.Address, p.City, p.State, p.ZipCode, p.IDDocumentPath,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrDuplicateContact
		}
		if db.IsForeignKeyViolation(err, "") {
			return ErrUnknownPrincipal
		}
		return fmt.Errorf("identity: insert user profile: %w", err)
	}
	return nil
}

// InsertVendorTx inserts the 1:1 corporate profile for a token.
func (r *Repository) InsertVendorTx(ctx context.Context, tx pgx.Tx, token, corpName string) error {
	_, err := tx.Exec(ctx, `INSERT INTO users.vendors (user_token, corp_name) VALUES ($1, $2)`, token, corpName)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return ErrUnknownPrincipal
		}
		return fmt.Errorf("identity: insert vendor: %w", err)
	}
	return nil
}

// GetUser retrieves the personal profile for a token.
func (r *Repository) GetUser(ctx context.Context, token string) (UserProfile, error) {
	const selectSQL = `
		SELECT u.user_token, u.first_name, u.last_name, u.email, u.phone_number,
		       u.address, u.city, u.state, u.zip_code, u.id_document_path
		FROM users.user_info u
		JOIN users.credentials c ON c.token = u.user_token
		WHERE c.token = $1
	`

	var p UserProfile
	err := r.pool.QueryRow(ctx, selectSQL, token).Scan(
		&p.Token, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber,
		&p.Address, &p.City, &p.State, &p.ZipCode, &p.IDDocumentPath,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserProfile{}, ErrUnknownPrincipal
		}
		return UserProfile{}, fmt.Errorf("identity: get user: %w", err)
	}
	return p, nil
}

// LookupUserByEmail retrieves the profile registered under an email address.
func (r *Repository) LookupUserByEmail(ctx context.Context, email string) (UserProfile, error) {
	const selectSQL = `
		SELECT user_token, first_name, last_name, email, phone_number,
		       address, city, state, zip_code, id_document_path
		FROM users.user_info
		WHERE email = $1
	`

	var p UserProfile
	err := r.pool.QueryRow(ctx, selectSQL, email).Scan(
		&p.Token, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber,
		&p.Address, &p.City, &p.State, &p.ZipCode, &p.IDDocumentPath,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserProfile{}, ErrUnknownPrincipal
		}
		return UserProfile{}, fmt.Errorf("identity: lookup user by email: %w", err)
	}
	return p, nil
}

// GetVendor retrieves the corporate profile for a token.
func (r *Repository) GetVendor(ctx context.Context, token string) (VendorProfile, error) {
	const selectSQL = `
		SELECT user_token, corp_name, n_strikes
		FROM users.vendors
		WHERE user_token = $1
	`

	var v VendorProfile
	err := r.pool.QueryRow(ctx, selectSQL, token).Scan(&v.Token, &v.CorpName, &v.NStrikes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VendorProfile{}, ErrNotAVendor
		}
		return VendorProfile{}, fmt.Errorf("identity: get vendor: %w", err)
	}
	return v, nil
}

// CredentialExists reports whether a credential row exists for the token.
func (r *Repository) CredentialExists(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM users.credentials WHERE token = $1`, token).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity: credential exists: %w", err)
	}
	return true, nil
}

// DeleteCredential removes the credential and, through cascades, every
// dependent row across all schemas.
func (r *Repository) DeleteCredential(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users.credentials WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("identity: delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownPrincipal
	}
	return nil
}

// AddStrike increments a vendor's strike count and returns the new value.
func (r *Repository) AddStrike(ctx context.Context, token string) (int, error) {
	const updateSQL = `
		UPDATE users.vendors
		SET n_strikes = n_strikes + 1
		WHERE user_token = $1
		RETURNING n_strikes
	`

	var strikes int
	err := r.pool.QueryRow(ctx, updateSQL, token).Scan(&strikes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotAVendor
		}
		return 0, fmt.Errorf("identity: add strike: %w", err)
	}
	return strikes, nil
}

// InsertAdminToken stores the bcrypt hash of a freshly minted admin token.
func (r *Repository) InsertAdminToken(ctx context.Context, hash, label string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users.admin_tokens (token_hash, label) VALUES ($1, $2) RETURNING id`,
		hash, label,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("identity: insert admin token: %w", err)
	}
	return id, nil
}

// GetAdminTokenHash fetches the stored hash for an admin token id.
func (r *Repository) GetAdminTokenHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT token_hash FROM users.admin_tokens WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownAdminToken
		}
		return "", fmt.Errorf("identity: get admin token hash: %w", err)
	}
	return hash, nil
}
