// Package auth authenticates the site administrator and issues bearer tokens.
//
// There is a single administrator account. Tokens are HS256 JWTs valid for a
// day; logging out records the token ID in a revocation table until the token
// would have expired anyway. Every login attempt is written to an audit table.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/impa/website/internal/jsonldb"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/bcrypt"
)

// TokenExpiration is the lifetime of an issued token.
const TokenExpiration = 24 * time.Hour

// RoleAdmin is the only role.
const RoleAdmin = "admin"

// maxUserAgent is the number of runes of a user agent kept in the login log.
const maxUserAgent = 200

var (
	// ErrInvalidCredentials is returned by Login on a bad username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for a malformed, expired or revoked token.
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated administrator.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Claims is the JWT payload.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Meta describes the client of a login attempt.
type Meta struct {
	IP          string
	CountryCode string
	UserAgent   string
}

// LoginAttempt is a row of the audit table.
type LoginAttempt struct {
	ID          ksid.ID   `json:"id"`
	Username    string    `json:"username"`
	Success     bool      `json:"success"`
	IP          string    `json:"ip,omitempty"`
	CountryCode string    `json:"countryCode,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	Time        time.Time `json:"time"`
}

type revocation struct {
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures a Service.
type Options struct {
	Username string
	// PasswordHash is a bcrypt hash; when empty Password is hashed at startup.
	PasswordHash string
	Password     string
	Secret       []byte
	// RevokedPath and AuditPath are JSONL tables. Empty keeps them in memory.
	RevokedPath string
	AuditPath   string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service checks credentials and tokens.
type Service struct {
	username string
	hash     []byte
	secret   []byte
	now      func() time.Time
	revoked  *jsonldb.Table[revocation]
	audit    *jsonldb.Table[LoginAttempt]
}

// NewService returns a Service. Revocations of already expired tokens are
// dropped.
func NewService(opts Options) (*Service, error) {
	if opts.Username == "" {
		return nil, errors.New("auth: username is required")
	}
	if len(opts.Secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	hash := []byte(opts.PasswordHash)
	if len(hash) == 0 {
		if opts.Password == "" {
			return nil, errors.New("auth: password is required")
		}
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("auth: invalid password hash: %w", err)
	}
	revoked, err := jsonldb.NewTable[revocation](opts.RevokedPath)
	if err != nil {
		return nil, err
	}
	audit, err := jsonldb.NewTable[LoginAttempt](opts.AuditPath)
	if err != nil {
		return nil, err
	}
	s := &Service{
		username: opts.Username,
		hash:     hash,
		secret:   opts.Secret,
		now:      opts.Now,
		revoked:  revoked,
		audit:    audit,
	}
	if s.now == nil {
		s.now = time.Now
	}
	now := s.now()
	if n, err := revoked.DeleteFunc(func(r *revocation) bool { return now.After(r.ExpiresAt) }); err != nil {
		return nil, err
	} else if n > 0 {
		slog.Info("Dropped expired token revocations", "count", n)
	}
	return s, nil
}

func (s *Service) user() User {
	return User{ID: s.username, Username: s.username, Role: RoleAdmin}
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string, meta Meta) (string, User, time.Time, error) {
	ok := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Always run bcrypt so timing does not reveal the username.
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		ok = false
	}
	s.record(ctx, username, ok, meta)
	if !ok {
		slog.WarnContext(ctx, "Failed admin login", "username", username, "ip", meta.IP, "country", meta.CountryCode)
		return "", User{}, time.Time{}, ErrInvalidCredentials
	}
	now := s.now()
	exp := now.Add(TokenExpiration)
	u := s.user()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ksid.NewID().String(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", User{}, time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	slog.InfoContext(ctx, "Admin logged in", "username", username, "ip", meta.IP, "country", meta.CountryCode)
	return token, u, exp, nil
}

func (s *Service) record(ctx context.Context, username string, success bool, meta Meta) {
	ua := meta.UserAgent
	if utf8.RuneCountInString(ua) > maxUserAgent {
		ua = string([]rune(ua)[:maxUserAgent])
	}
	a := LoginAttempt{
		ID:          ksid.NewID(),
		Username:    username,
		Success:     success,
		IP:          meta.IP,
		CountryCode: meta.CountryCode,
		UserAgent:   ua,
		Time:        s.now().UTC(),
	}
	if err := s.audit.Append(a); err != nil {
		slog.ErrorContext(ctx, "Failed to record login attempt", "err", err)
	}
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject != s.username || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify returns the user a valid, unrevoked token was issued to.
func (s *Service) Verify(token string) (User, *Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return User{}, nil, err
	}
	if _, revoked := s.revoked.Find(func(r *revocation) bool { return r.TokenID == claims.ID }); revoked {
		return User{}, nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return s.user(), claims, nil
}

// Logout revokes token. Revoking an already revoked token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, claims, err := s.Verify(token)
	if err != nil {
		return err
	}
	if err := s.revoked.Append(revocation{TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	slog.InfoContext(ctx, "Admin logged out", "jti", claims.ID)
	return nil
}

// LoginAttempts returns the audit log, newest first.
func (s *Service) LoginAttempts() []LoginAttempt {
	rows := s.audit.All()
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}
