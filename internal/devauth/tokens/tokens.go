// Package tokens mints and verifies the HS256 session tokens issued by the
// dev auth service. A shared symmetric secret is plenty for a development
// stub; production would sit behind a key-managed issuer.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens.
const DefaultSessionTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("tokens: invalid token")

// Claims are the session-token claims the dev auth service issues.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated account, for debugging convenience.
	Email string `json:"email,omitempty"`
}

// Minter signs and verifies session tokens with a shared HS256 secret.
type Minter struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewMinter(secret, issuer string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Minter{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Mint issues a signed session token for the account.
func (m *Minter) Mint(accountID, email string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a session token and returns its claims. Expired or otherwise
// malformed tokens return ErrInvalidToken.
func (m *Minter) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
