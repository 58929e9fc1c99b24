// Package reqctx carries per-request metadata through a context.
package reqctx

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/impa/website/internal/auth"
)

// GetClientIP returns the client address of r. The leftmost X-Forwarded-For
// entry wins, then X-Real-IP, then RemoteAddr without its port.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.Trim(r.RemoteAddr, "[]")
}

type contextKey string

const (
	keyClientIP    contextKey = "clientIP"
	keyUserAgent   contextKey = "userAgent"
	keyCountryCode contextKey = "countryCode"
	keyTokenString contextKey = "tokenString"
	keyTokenID     contextKey = "tokenID"
	keyUser        contextKey = "user"
)

// WithClientIP adds the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP extracts the client IP from the context.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(keyClientIP).(string)
	return v
}

// WithUserAgent adds the User-Agent to the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, keyUserAgent, ua)
}

// UserAgent extracts the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(keyUserAgent).(string)
	return v
}

// WithCountryCode adds the country code to the context.
func WithCountryCode(ctx context.Context, cc string) context.Context {
	return context.WithValue(ctx, keyCountryCode, cc)
}

// CountryCode extracts the country code from the context.
func CountryCode(ctx context.Context) string {
	v, _ := ctx.Value(keyCountryCode).(string)
	return v
}

// WithTokenString adds the bearer token to the context.
func WithTokenString(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyTokenString, token)
}

// TokenString extracts the bearer token from the context.
func TokenString(ctx context.Context) string {
	v, _ := ctx.Value(keyTokenString).(string)
	return v
}

// WithTokenID adds the token's jti claim to the context.
func WithTokenID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTokenID, id)
}

// TokenID extracts the token's jti claim from the context.
func TokenID(ctx context.Context) string {
	v, _ := ctx.Value(keyTokenID).(string)
	return v
}

// WithUser adds the authenticated user to the context.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, keyUser, u)
}

// User extracts the authenticated user from the context, or nil.
func User(ctx context.Context) *auth.User {
	v, _ := ctx.Value(keyUser).(*auth.User)
	return v
}

// Meta returns the login metadata of the request in ctx.
func Meta(ctx context.Context) auth.Meta {
	return auth.Meta{IP: ClientIP(ctx), CountryCode: CountryCode(ctx), UserAgent: UserAgent(ctx)}
}
