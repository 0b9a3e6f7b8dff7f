// Package token decodes session bearer tokens into claims.
//
// Decoding is optimistic: signatures are never checked here. The issuing
// backend is the only party that can vouch for a token, and revocation is
// observed through 401 responses on authenticated calls. Claims read here
// are hints for presentation and routing decisions; anything that matters
// for data integrity is enforced server-side.
package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/users"
)

const (
	claimRole   = "role"
	claimUserID = "user_id"
)

// Claims are the fields the console reads from a session token.
type Claims struct {
	Subject   string         // Username the token was issued to
	Role      users.RoleType // Empty when the issuer omitted the role claim
	UserID    string         // Optional user_id claim
	ExpiresAt time.Time      // Zero when the token carries no exp claim
	Raw       jwtlib.MapClaims
}

// Expired reports whether the exp claim is in the past. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// DecodeError is returned for tokens that cannot be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

// Unwrap exposes both the malformed-token sentinel and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrMalformedToken}
	}
	return []error{apperrors.ErrMalformedToken, e.Err}
}

// Decode splits a compact JWS into its three segments, base64url decodes the
// payload and reads the claims. The signature segment is ignored.
func Decode(raw string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, &DecodeError{Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &DecodeError{Reason: "empty token"}
	}
	if n := strings.Count(raw, "."); n != 2 {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected 3 segments, got %d", n+1)}
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, &DecodeError{Reason: "invalid segment", Err: err}
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, &DecodeError{Reason: "unexpected claims type"}
	}

	sub, err := mapClaims.GetSubject()
	if err != nil {
		return nil, &DecodeError{Reason: "invalid sub claim", Err: err}
	}
	if strings.TrimSpace(sub) == "" {
		return nil, &DecodeError{Reason: "missing sub claim"}
	}
	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, &DecodeError{Reason: "invalid exp claim", Err: err}
	}

	claims = &Claims{
		Subject: sub,
		Raw:     mapClaims,
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if role, ok := mapClaims[claimRole].(string); ok && role != "" {
		claims.Role, _ = users.ParseRole(role)
	}
	switch id := mapClaims[claimUserID].(type) {
	case string:
		claims.UserID = id
	case float64:
		claims.UserID = fmt.Sprintf("%.0f", id)
	}
	return claims, nil
}
