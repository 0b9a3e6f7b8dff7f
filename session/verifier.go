package session

import (
	"context"

	"github.com/jrsteele09/go-pos-console/users"
)

// Verifier is the backend that issues session tokens and serves user profiles.
type Verifier interface {
	// Login exchanges primary credentials for a session token. Rejected
	// credentials return an error wrapping errors.ErrInvalidCredentials.
	Login(ctx context.Context, username, password string) (string, error)

	// PINLogin exchanges a floor-staff PIN for a session token and its user.
	PINLogin(ctx context.Context, pin string) (string, *users.Identity, error)

	// Profiles lists every user profile visible to the current session.
	Profiles(ctx context.Context) ([]users.Profile, error)
}
