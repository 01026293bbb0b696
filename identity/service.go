package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"escrowdesk/account"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Service handles registration and principal lifecycle business logic.
type Service struct {
	pool      *pgxpool.Pool
	repo      *Repository
	accounts  *account.Repository
	jwtSecret []byte
}

// NewService creates a new identity service.
func NewService(pool *pgxpool.Pool, repo *Repository, accounts *account.Repository, jwtSecret string) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		accounts:  accounts,
		jwtSecret: []byte(jwtSecret),
	}
}

// RegisterUser mints a fresh credential token and registers the personal
// profile and bank account as one atomic unit.
func (s *Service) RegisterUser(ctx context.Context, params RegisterUserParams) (string, error) {
	if params.FirstName == "" || params.LastName == "" || params.Email == "" || params.PhoneNumber == "" {
		return "", fmt.Errorf("identity: name, email, and phone are required")
	}
	if params.AccountNumber == "" || params.RoutingNumber == "" {
		return "", fmt.Errorf("identity: bank account details are required")
	}

	token := newToken()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("identity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateCredentialTx(ctx, tx, token); err != nil {
		return "", err
	}
	if err := s.repo.InsertUserProfileTx(ctx, tx, profileFromParams(token, params)); err != nil {
		return "", err
	}
	if _, err := s.accounts.InsertBankAccountTx(ctx, tx, token, params.AccountNumber, params.RoutingNumber); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("identity: commit registration: %w", err)
	}
	return token, nil
}

// RegisterVendor mints a credential and registers the corporate profile,
// personal profile, and bank account in one atomic unit.
func (s *Service) RegisterVendor(ctx context.Context, params RegisterVendorParams) (string, error) {
	if params.CorpName == "" {
		return "", fmt.Errorf("identity: corp name is required")
	}
	if params.FirstName == "" || params.LastName == "" || params.Email == "" || params.PhoneNumber == "" {
		return "", fmt.Errorf("identity: name, email, and phone are required")
	}
	if params.AccountNumber == "" || params.RoutingNumber == "" {
		return "", fmt.Errorf("identity: bank account details are required")
	}

	token := newToken()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("identity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateCredentialTx(ctx, tx, token); err != nil {
		return "", err
	}
	if err := s.repo.InsertVendorTx(ctx, tx, token, params.CorpName); err != nil {
		return "", err
	}
	if err := s.repo.InsertUserProfileTx(ctx, tx, profileFromParams(token, params.RegisterUserParams)); err != nil {
		return "", err
	}
	if _, err := s.accounts.InsertBankAccountTx(ctx, tx, token, params.AccountNumber, params.RoutingNumber); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("identity: commit vendor registration: %w", err)
	}
	return token, nil
}

// GetUser retrieves the personal profile behind a token.
func (s *Service) GetUser(ctx context.Context, token string) (UserProfile, error) {
	return s.repo.GetUser(ctx, token)
}

// GetVendor retrieves the corporate profile behind a token.
func (s *Service) GetVendor(ctx context.Context, token string) (VendorProfile, error) {
	return s.repo.GetVendor(ctx, token)
}

// LookupUserByEmail resolves a profile from its unique email address.
func (s *Service) LookupUserByEmail(ctx context.Context, email string) (UserProfile, error) {
	return s.repo.LookupUserByEmail(ctx, email)
}

// DeleteCredential removes a principal and every dependent row.
func (s *Service) DeleteCredential(ctx context.Context, token string) error {
	return s.repo.DeleteCredential(ctx, token)
}

// AddStrike records a strike against a vendor.
func (s *Service) AddStrike(ctx context.Context, token string) (int, error) {
	return s.repo.AddStrike(ctx, token)
}

// MintAdminToken creates a new admin token and returns its one-time raw
// form "adm_<id>.<secret>". Only the bcrypt hash of the secret is stored.
func (s *Service) MintAdminToken(ctx context.Context, label string) (string, error) {
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash admin token: %w", err)
	}

	id, err := s.repo.InsertAdminToken(ctx, string(hash), label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("adm_%d.%s", id, secret), nil
}

// VerifyAdminToken checks a raw admin token against its stored hash.
func (s *Service) VerifyAdminToken(ctx context.Context, raw string) (int64, error) {
	id, secret, err := splitAdminToken(raw)
	if err != nil {
		return 0, err
	}

	hash, err := s.repo.GetAdminTokenHash(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return 0, ErrUnknownAdminToken
	}
	return id, nil
}

// IssueAdminSession exchanges a verified admin token for a short-lived JWT.
func (s *Service) IssueAdminSession(ctx context.Context, raw string) (string, error) {
	id, err := s.VerifyAdminToken(ctx, raw)
	if err != nil {
		return "", err
	}
	return s.signAdminSession(id)
}

// signAdminSession creates a session JWT for a verified admin id.
func (s *Service) signAdminSession(id int64) (string, error) {
	claims := jwt.MapClaims{
		"admin_id": strconv.FormatInt(id, 10),
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("identity: sign admin session: %w", err)
	}
	return signed, nil
}

// VerifyAdminSession validates an admin session JWT and returns the admin id.
func (s *Service) VerifyAdminSession(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("identity: parse admin session: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("identity: invalid admin session")
	}
	idStr, ok := claims["admin_id"].(string)
	if !ok {
		return 0, fmt.Errorf("identity: invalid admin_id in session")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("identity: invalid admin_id in session")
	}
	return id, nil
}

func profileFromParams(token string, params RegisterUserParams) UserProfile {
	return UserProfile{
		Token:          token,
		FirstName:      strings.ToLower(strings.TrimSpace(params.FirstName)),
		LastName:       strings.ToLower(strings.TrimSpace(params.LastName)),
		Email:          strings.ToLower(strings.TrimSpace(params.Email)),
		PhoneNumber:    strings.TrimSpace(params.PhoneNumber),
		Address:        params.Address,
		City:           params.City,
		State:          params.State,
		ZipCode:        params.ZipCode,
		IDDocumentPath: params.IDDocumentPath,
	}
}

func newToken() string {
	return "tok_" + uuid.NewString()
}

func splitAdminToken(raw string) (int64, string, error) {
	rest, ok := strings.CutPrefix(raw, "adm_")
	if !ok {
		return 0, "", ErrUnknownAdminToken
	}
	idStr, secret, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, "", ErrUnknownAdminToken
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", ErrUnknownAdminToken
	}
	return id, secret, nil
}
