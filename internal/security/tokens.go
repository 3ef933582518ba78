package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 1200 * time.Second
	DefaultRefreshTTL = 604800 * time.Second
)

var (
	// ErrTokenInvalidSignature is returned when the signature does not verify or the signing method is not HS256.
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	// ErrTokenExpired is returned when a correctly signed token is past its exp claim.
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenMalformed is returned when the token cannot be parsed or carries no subject.
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrEmptySecret is returned by NewTokenIssuer when a signing secret is missing or both secrets are equal.
	ErrEmptySecret = errors.New("access and refresh secrets must be set and distinct")
)

// TokenIssuer issues and verifies HS256 JWT access and refresh tokens. Access and
// refresh tokens are signed with separate secrets so one key cannot forge the other kind.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. Non-positive TTLs select the defaults.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" || accessSecret == refreshSecret {
		return nil, ErrEmptySecret
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenIssuer) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenIssuer) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccessToken signs a short-lived access token whose only custom claim is sub.
func (p *TokenIssuer) IssueAccessToken(subject string) (string, error) {
	return p.issue(subject, p.accessSecret, p.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for subject.
func (p *TokenIssuer) IssueRefreshToken(subject string) (string, error) {
	return p.issue(subject, p.refreshSecret, p.refreshTTL)
}

// VerifyAccessToken returns the subject of a valid access token.
func (p *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	return p.verify(token, p.accessSecret)
}

// VerifyRefreshToken returns the subject of a valid refresh token. It does not
// consult the session store; callers cross-check the stored value separately.
func (p *TokenIssuer) VerifyRefreshToken(token string) (string, error) {
	return p.verify(token, p.refreshSecret)
}

func (p *TokenIssuer) issue(subject string, secret []byte, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrTokenMalformed
	}
	now := p.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (p *TokenIssuer) verify(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrTokenMalformed
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

// classify maps jwt parse errors onto the three verification failures.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

// IsRoutineTokenError reports whether err is an expected client-side failure
// (expiry or bad signature) that should not be logged.
func IsRoutineTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalidSignature)
}
