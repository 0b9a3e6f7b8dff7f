// Package stepup authorizes a single sensitive action with a PIN, separately
// from the primary session. Nothing is remembered between challenges.
package stepup

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	MinPINLength = 4
	MaxPINLength = 8
)

// PINValidator checks a user's PIN with the backend. A non-success answer
// is reported as false, a failed call as an error.
type PINValidator interface {
	ValidatePIN(ctx context.Context, userID, pin string) (bool, error)
}

// Challenge is one PIN entry for one action. It is never persisted and its
// PIN is wiped once Authorize returns.
type Challenge struct {
	UserID string
	PIN    string
}

// NewChallenge builds a challenge for the acting user.
func NewChallenge(userID, pin string) *Challenge {
	return &Challenge{UserID: userID, PIN: pin}
}

// Wipe clears the entered PIN.
func (c *Challenge) Wipe() {
	if c != nil {
		c.PIN = ""
	}
}

// ValidPINFormat reports whether pin could be a PIN at all: digits only,
// between MinPINLength and MaxPINLength long.
func ValidPINFormat(pin string) bool {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type Authenticator struct {
	validator PINValidator
	logger    zerolog.Logger
}

// Option defines a function type to modify the Authenticator instance.
type Option func(*Authenticator)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

func New(validator PINValidator, options ...Option) (*Authenticator, error) {
	if validator == nil {
		return nil, errors.New("[stepup.New] PIN validator is required")
	}
	a := &Authenticator{validator: validator, logger: log.Logger}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Authorize validates the challenge and runs action only if the PIN is
// valid. An invalid PIN and a failed validation call both return an error
// wrapping errors.ErrInvalidPIN and action is not run. The challenge PIN is
// wiped on every path.
func (a *Authenticator) Authorize(ctx context.Context, ch *Challenge, action func(context.Context) error) error {
	if ch == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidPIN, "[Authenticator.Authorize] no challenge")
	}
	defer ch.Wipe()

	if action == nil {
		return errors.New("[Authenticator.Authorize] action is required")
	}
	if ch.UserID == "" {
		return apperrors.Wrapf(apperrors.ErrNotLoggedIn, "[Authenticator.Authorize] challenge has no user")
	}
	if !ValidPINFormat(ch.PIN) {
		metrics.StepUps.WithLabelValues("rejected").Inc()
		return apperrors.Wrapf(apperrors.ErrInvalidPIN, "[Authenticator.Authorize] PIN must be %d to %d digits", MinPINLength, MaxPINLength)
	}

	valid, err := a.validator.ValidatePIN(ctx, ch.UserID, ch.PIN)
	ch.Wipe()
	if err != nil {
		metrics.StepUps.WithLabelValues("error").Inc()
		a.logger.Warn().Err(err).Str("user_id", ch.UserID).Msg("PIN validation call failed")
		return fmt.Errorf("[Authenticator.Authorize] %w: %w", apperrors.ErrInvalidPIN, err)
	}
	if !valid {
		metrics.StepUps.WithLabelValues("invalid").Inc()
		a.logger.Info().Str("user_id", ch.UserID).Msg("PIN rejected")
		return apperrors.Wrapf(apperrors.ErrInvalidPIN, "[Authenticator.Authorize] PIN rejected")
	}

	metrics.StepUps.WithLabelValues("valid").Inc()
	a.logger.Debug().Str("user_id", ch.UserID).Msg("PIN accepted")
	return action(ctx)
}
