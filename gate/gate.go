// Package gate decides what a screen shows for the current session. The
// decisions are pure functions of a session snapshot and a role requirement.
package gate

import (
	"github.com/jrsteele09/go-pos-console/session"
	"github.com/jrsteele09/go-pos-console/users"
)

type Decision int

const (
	// Wait means the session is still resolving. Show a neutral waiting
	// indicator and do not redirect.
	Wait Decision = iota
	RedirectLogin
	RedirectUnauthorized
	Render
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case Render:
		return "render"
	}
	return "unknown"
}

// Evaluate is the route guard decision for st under req.
func Evaluate(st session.State, req users.Requirement) Decision {
	if st.Loading {
		return Wait
	}
	if st.Token == "" || st.User == nil {
		return RedirectLogin
	}
	if !req.IsAbsent() && !req.Allows(st.User.Role) {
		return RedirectUnauthorized
	}
	return Render
}

// Allowed is the inline gate predicate. It never waits or redirects and is
// false whenever there is no user.
func Allowed(st session.State, req users.Requirement) bool {
	return st.User != nil && req.Allows(st.User.Role)
}

// Inline returns content when the user satisfies req and fallback otherwise.
// Pass the zero value as fallback to render nothing.
func Inline[T any](st session.State, req users.Requirement, content, fallback T) T {
	if Allowed(st, req) {
		return content
	}
	return fallback
}
