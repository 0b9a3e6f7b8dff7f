package session

import (
	"github.com/jrsteele09/go-pos-console/token"
	"github.com/jrsteele09/go-pos-console/users"
)

// Resolution is the outcome of identity resolution for a token. It is either
// a ResolvedProfile or a FallbackFromClaims.
type Resolution interface {
	Identity(defaultRole users.RoleType) *users.Identity
	resolution()
}

// ResolvedProfile is an identity backed by the profile service.
type ResolvedProfile struct {
	Profile users.Profile
}

func (r ResolvedProfile) Identity(users.RoleType) *users.Identity {
	return users.IdentityFromProfile(r.Profile)
}

func (ResolvedProfile) resolution() {}

// FallbackFromClaims is a degraded identity built only from token claims,
// used when the profile lookup failed or found no match.
type FallbackFromClaims struct {
	Claims *token.Claims
	Cause  error
}

func (f FallbackFromClaims) Identity(defaultRole users.RoleType) *users.Identity {
	role := f.Claims.Role
	if role == "" {
		role = defaultRole
	}
	id := f.Claims.UserID
	if id == "" {
		id = f.Claims.Subject
	}
	return &users.Identity{
		ID:        id,
		Username:  f.Claims.Subject,
		Role:      role,
		IsActive:  true,
		IsOffline: true,
	}
}

func (FallbackFromClaims) resolution() {}
