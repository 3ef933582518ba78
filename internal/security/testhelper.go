package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

// NewTestTokenIssuer returns a TokenIssuer using fixed test secrets and default TTLs.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	p, err := NewTokenIssuer(testAccessSecret, testRefreshSecret, DefaultAccessTTL, DefaultRefreshTTL)
	if err != nil {
		panic(err)
	}
	return p
}

// WithClock returns a copy of p that reads the current time from now.
// Tests use it to mint tokens in the past.
func (p *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *p
	cp.now = now
	return &cp
}
