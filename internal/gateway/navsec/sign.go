// Package navsec stamps every protected navigation with a deterministic
// signature derived from the session identity, a timestamp and a nonce, and
// regenerates URLs that do not carry one matching the current session.
//
// This is a cache-busting deterrent, not access control: the digest is a
// fast non-cryptographic hash anyone could recompute. Authorization is
// enforced by the route guard and by the auth API, never here.
package navsec

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/pkg/authapi"
	"github.com/agroisync/gateway/pkg/idx"
)

// Query parameter markers for the navigation signature.
const (
	ParamTimestamp     = "_ts"
	ParamNonce         = "_nonce"
	ParamUserDigest    = "_ud"
	ParamSessionDigest = "_sd"
)

// digestLen truncates digests to a short fixed-length token.
const digestLen = 12

// UserDigest returns a deterministic one-way hash of the authenticated
// user's identity, or the fixed anonymous digest for a nil user.
func UserDigest(user *authapi.User) string {
	if user == nil {
		return digest("anonymous")
	}
	return digest(user.ID + "|" + user.Email)
}

// SessionDigest combines timestamp, nonce and user digest into the
// per-navigation signature token.
func SessionDigest(timestamp, nonce, userDigest string) string {
	return digest(timestamp + "|" + nonce + "|" + userDigest)
}

func digest(input string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(input))
	s := fmt.Sprintf("%016x", h.Sum64())
	return s[:digestLen]
}

// Verdict is the outcome of validating one navigation URL.
type Verdict int

const (
	// VerdictSecure: the URL carries a signature matching the session.
	VerdictSecure Verdict = iota
	// VerdictRegenerate: the signature is missing or was minted for a
	// different identity; replace the navigation with a signed URL.
	VerdictRegenerate
	// VerdictExempt: the path is excluded from signing entirely.
	VerdictExempt
)

// Exempt reports whether a path bypasses the signing scheme. Login and
// registration flows pass through unconditionally.
func Exempt(path string) bool {
	return path == domain.RouteLogin ||
		path == domain.RouteRegister ||
		strings.HasPrefix(path, domain.RouteLogin+"/") ||
		strings.HasPrefix(path, domain.RouteRegister+"/")
}

// Validate checks the signature parameters of u against the current user.
func Validate(u *url.URL, user *authapi.User) Verdict {
	if Exempt(u.Path) {
		return VerdictExempt
	}

	q := u.Query()
	ts := q.Get(ParamTimestamp)
	nonce := q.Get(ParamNonce)
	ud := q.Get(ParamUserDigest)

	// All three markers must be present.
	if ts == "" || nonce == "" || ud == "" {
		return VerdictRegenerate
	}

	// An authenticated navigation must carry a digest minted for this
	// user, not for anonymous or somebody else.
	if user != nil && ud != UserDigest(user) {
		return VerdictRegenerate
	}

	return VerdictSecure
}

// Sign returns a copy of u carrying a fresh signature for the current user.
// Existing signature parameters are replaced; everything else is preserved.
func Sign(u *url.URL, user *authapi.User) *url.URL {
	signed := *u

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := idx.New().String()
	ud := UserDigest(user)

	q := signed.Query()
	q.Set(ParamTimestamp, ts)
	q.Set(ParamNonce, nonce)
	q.Set(ParamUserDigest, ud)
	q.Set(ParamSessionDigest, SessionDigest(ts, nonce, ud))
	signed.RawQuery = q.Encode()

	return &signed
}
