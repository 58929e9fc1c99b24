package ratelimit

import (
	"net/http"
	"time"
)

// Tier is a named limiter.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Tiers routes requests to a limiter. A nil tier is unlimited.
type Tiers struct {
	// Auth covers unauthenticated submissions: login, contact form and push
	// subscriptions.
	Auth *Tier
	// Write covers authenticated mutations.
	Write *Tier
}

// NewTiers builds the tiers from per minute limits. A limit of 0 disables
// the tier.
func NewTiers(authPerMin, writePerMin int) *Tiers {
	t := &Tiers{}
	if authPerMin > 0 {
		t.Auth = &Tier{Name: "auth", Limiter: NewLimiter(authPerMin, time.Minute, authPerMin)}
	}
	if writePerMin > 0 {
		t.Write = &Tier{Name: "write", Limiter: NewLimiter(writePerMin, time.Minute, max(writePerMin/6, 1))}
	}
	return t
}

// Match returns the tier for a request, or nil.
func (t *Tiers) Match(method, path string, authenticated bool) *Tier {
	if t == nil {
		return nil
	}
	if authenticated {
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			return t.Write
		}
		return nil
	}
	if method != http.MethodPost {
		return nil
	}
	switch path {
	case "/api/auth/login", "/api/contact", "/api/push/subscribe":
		return t.Auth
	}
	return nil
}

// Close stops every limiter.
func (t *Tiers) Close() {
	for _, tier := range []*Tier{t.Auth, t.Write} {
		if tier != nil {
			tier.Limiter.Close()
		}
	}
}

// Key builds the bucket key of a client in a tier.
func Key(tier *Tier, client string) string {
	return tier.Name + ":" + client
}
