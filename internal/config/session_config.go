package config

import (
	"time"

	"github.com/jrsteele09/go-pos-console/users"
)

type SessionConfig interface {
	GetDefaultRole() users.RoleType
	GetLoginPath() string
	GetUnauthorizedPath() string
	GetRequestTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetDefaultRole is the role given to a fallback identity whose token carries no role claim.
func (Session) GetDefaultRole() users.RoleType {
	role, err := users.ParseRole(GetEnv("DEFAULT_ROLE", string(users.RoleCashier)))
	if err != nil {
		return users.RoleCashier
	}
	return role
}

func (Session) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/login")
}

func (Session) GetUnauthorizedPath() string {
	return GetEnv("UNAUTHORIZED_PATH", "/unauthorized")
}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration(requestTimeoutEV, 10*time.Second)
}
