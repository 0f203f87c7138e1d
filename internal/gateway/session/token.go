package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired inspects a JWT's exp claim without verifying its signature.
// The second return is false when the token is not a parseable JWT or has no
// expiry; the server stays the authority in that case and the caller should
// fall through to the profile fetch.
func tokenExpired(token string) (expired, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, false
	}

	return exp.Before(time.Now()), true
}
