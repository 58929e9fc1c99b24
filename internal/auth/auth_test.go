package auth

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte(strings.Repeat("k", 32))

func newTestService(t *testing.T, dir string, now *time.Time) *Service {
	t.Helper()
	opts := Options{
		Username: "impa2025",
		Password: "1234",
		Secret:   testSecret,
		Now:      func() time.Time { return *now },
	}
	if dir != "" {
		opts.RevokedPath = filepath.Join(dir, "revoked.jsonl")
		opts.AuditPath = filepath.Join(dir, "logins.jsonl")
	}
	s, err := NewService(opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLogin(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, "", &now)

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
	}{
		{"ok", "impa2025", "1234", nil},
		{"bad password", "impa2025", "12345", ErrInvalidCredentials},
		{"bad user", "admin", "1234", ErrInvalidCredentials},
		{"empty", "", "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, u, exp, err := s.Login(t.Context(), tt.user, tt.password, Meta{IP: "203.0.113.1"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if u.Role != RoleAdmin || u.Username != "impa2025" {
				t.Errorf("got %+v", u)
			}
			if !exp.Equal(now.Add(TokenExpiration)) {
				t.Errorf("got %v, want %v", exp, now.Add(TokenExpiration))
			}
			if _, _, err := s.Verify(token); err != nil {
				t.Errorf("Verify: %v", err)
			}
		})
	}
	attempts := s.LoginAttempts()
	if len(attempts) != len(tests) {
		t.Fatalf("got %d attempts, want %d", len(attempts), len(tests))
	}
	if attempts[len(attempts)-1].Username != "impa2025" || !attempts[len(attempts)-1].Success {
		t.Errorf("oldest attempt: got %+v", attempts[len(attempts)-1])
	}
	if attempts[0].Success {
		t.Error("newest attempt must be the failed empty login")
	}
}

func TestLogin_TruncatesUserAgent(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, "", &now)
	ua := strings.Repeat("متصفح", 60)
	if _, _, _, err := s.Login(t.Context(), "impa2025", "1234", Meta{UserAgent: ua}); err != nil {
		t.Fatal(err)
	}
	got := s.LoginAttempts()[0].UserAgent
	if !utf8.ValidString(got) {
		t.Errorf("user agent is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxUserAgent {
		t.Errorf("got %d runes, want %d", n, maxUserAgent)
	}
	if !strings.HasPrefix(ua, got) {
		t.Error("user agent is not a prefix of the original")
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, "", &now)
	token, _, _, err := s.Login(t.Context(), "impa2025", "1234", Meta{})
	if err != nil {
		t.Fatal(err)
	}

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Subject:   "impa2025",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	forged, err := other.SignedString([]byte(strings.Repeat("z", 32)))
	if err != nil {
		t.Fatal(err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	for name, tok := range map[string]string{
		"garbage":   "not.a.token",
		"empty":     "",
		"other key": forged,
		"alg none":  none,
		"truncated": token[:len(token)-2],
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("got %v, want ErrInvalidToken", err)
			}
		})
	}

	now = now.Add(TokenExpiration + time.Second)
	if _, _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: got %v, want ErrInvalidToken", err)
	}
}

func TestLogout(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, dir, &now)
	token, _, _, err := s.Login(t.Context(), "impa2025", "1234", Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Logout(t.Context(), token); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("got %v, want ErrInvalidToken", err)
	}
	if err := s.Logout(t.Context(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second logout: got %v, want ErrInvalidToken", err)
	}

	// The revocation survives a restart.
	reopened := newTestService(t, dir, &now)
	if _, _, err := reopened.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("after restart: got %v, want ErrInvalidToken", err)
	}
	if got := len(reopened.LoginAttempts()); got != 1 {
		t.Errorf("got %d attempts, want 1", got)
	}

	// Once the token would have expired its revocation is pruned.
	now = now.Add(2 * TokenExpiration)
	pruned := newTestService(t, dir, &now)
	if got := pruned.revoked.Len(); got != 0 {
		t.Errorf("got %d revocations, want 0", got)
	}
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no username", Options{Password: "p", Secret: testSecret}},
		{"short secret", Options{Username: "u", Password: "p", Secret: []byte("short")}},
		{"no password", Options{Username: "u", Secret: testSecret}},
		{"bad hash", Options{Username: "u", PasswordHash: "plain", Secret: testSecret}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
