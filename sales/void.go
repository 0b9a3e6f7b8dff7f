package sales

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-pos-console/internal/errors"
	"github.com/jrsteele09/go-pos-console/internal/metrics"
	"github.com/jrsteele09/go-pos-console/stepup"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultVoidReason = "Sale voided"

// Voider voids completed sales behind a PIN step-up.
type Voider struct {
	backend Backend
	stepUp  *stepup.Authenticator
	logger  zerolog.Logger
}

type VoiderOption func(*Voider)

func WithLogger(logger zerolog.Logger) VoiderOption {
	return func(v *Voider) {
		v.logger = logger
	}
}

func NewVoider(backend Backend, stepUp *stepup.Authenticator, options ...VoiderOption) (*Voider, error) {
	if backend == nil {
		return nil, errors.New("[sales.NewVoider] backend is required")
	}
	if stepUp == nil {
		return nil, errors.New("[sales.NewVoider] step-up authenticator is required")
	}
	v := &Voider{backend: backend, stepUp: stepUp, logger: log.Logger}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Void moves a completed sale to VOIDED. The PIN is checked first, then every
// line item is returned to stock, and only then is the status changed. If
// the return fails the sale stays COMPLETED. The challenge is always wiped.
func (v *Voider) Void(ctx context.Context, saleID string, ch *stepup.Challenge, reason string) (*Sale, error) {
	defer ch.Wipe()

	sale, err := v.backend.GetSale(ctx, saleID)
	if err != nil {
		v.record("lookup_failed")
		return nil, errors.Wrapf(err, "[Voider.Void] get sale %s", saleID)
	}
	if !sale.Status.CanTransitionTo(StatusVoided) {
		v.record("rejected")
		if sale.Status == StatusVoided {
			return nil, apperrors.Wrapf(apperrors.ErrSaleAlreadyVoided, "[Voider.Void] sale %s", saleID)
		}
		return nil, apperrors.Wrapf(apperrors.ErrUnsupported, "[Voider.Void] sale %s has status %s", saleID, sale.Status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultVoidReason
	}

	var voided *Sale
	err = v.stepUp.Authorize(ctx, ch, func(ctx context.Context) error {
		receipt, err := v.backend.CreateReturn(ctx, FullReturn(sale, reason))
		if err != nil {
			return fmt.Errorf("[Voider.Void] return for sale %s: %w: %w", saleID, apperrors.ErrCompensationFailed, err)
		}
		v.logger.Info().Str("sale_id", saleID).Str("return_id", receipt.ID).
			Float64("refund", receipt.RefundAmount).Msg("stock returned for voided sale")

		voided, err = v.backend.UpdateSaleStatus(ctx, saleID, StatusVoided)
		if err != nil {
			// The return is already recorded; the backend now needs reconciling.
			v.logger.Error().Err(err).Str("sale_id", saleID).Str("return_id", receipt.ID).
				Msg("stock returned but sale status not updated")
			return errors.Wrapf(err, "[Voider.Void] set sale %s status after return %s", saleID, receipt.ID)
		}
		return nil
	})
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidPIN):
			v.record("invalid_pin")
		case apperrors.Is(err, apperrors.ErrCompensationFailed):
			v.record("compensation_failed")
		default:
			v.record("failed")
		}
		return nil, err
	}

	v.record("voided")
	v.logger.Info().Str("sale_id", saleID).Str("reason", reason).Msg("sale voided")
	return voided, nil
}

func (v *Voider) record(result string) {
	metrics.Voids.WithLabelValues(result).Inc()
}
