// Package cancellation runs the ledger reversal cascade for a cancelled
// stay. The booking workflow owns the cancellation itself; this package only
// unwinds referral commissions, signup bonus upgrades, and coupon
// redemptions tied to the stay. Every step is best effort: a reversal
// failure is logged and reported in the result, never returned as an error,
// because the stay's cancelled state is authoritative regardless of what the
// ledger managed to undo.
package cancellation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/roamnest/roamnest-backend/pkg/errors"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

const reversalReason = "booking_cancelled"

type commissionReverser interface {
	ReverseForStay(ctx context.Context, stayID uuid.UUID, reason string) (int, error)
	DowngradeSignupBonusOnBookingCancel(ctx context.Context, signupUserID uuid.UUID) error
}

type redemptionReverser interface {
	Reverse(ctx context.Context, stayID uuid.UUID) error
}

type ServiceParams struct {
	Referrals commissionReverser
	Wallets   redemptionReverser
	Logger    *logger.Logger
}

func (p ServiceParams) validate() error {
	if p.Referrals == nil {
		return errors.New(errors.CodeInternal, "cancellation: referral service is required")
	}
	if p.Wallets == nil {
		return errors.New(errors.CodeInternal, "cancellation: wallet service is required")
	}
	if p.Logger == nil {
		return errors.New(errors.CodeInternal, "cancellation: logger is required")
	}
	return nil
}

type Service struct {
	referrals commissionReverser
	wallets   redemptionReverser
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Service{
		referrals: params.Referrals,
		wallets:   params.Wallets,
		logg:      params.Logger,
	}, nil
}

// BookingCancelledParams carries what the booking workflow knows at
// cancellation time. BookingUserID is the guest's user id when the stay was
// their first qualifying booking, nil otherwise; WasPaid distinguishes a
// cancel-after-payment from an abandoned reservation.
type BookingCancelledParams struct {
	StayID        uuid.UUID
	WasPaid       bool
	InfluencerID  *uuid.UUID
	BookingUserID *uuid.UUID
}

// CascadeResult summarises what the cascade managed to undo. Err aggregates
// step failures for operator logging; callers must not treat it as a reason
// to abort the cancellation.
type CascadeResult struct {
	CommissionsReversed int
	BonusDowngraded     bool
	RedemptionReversed  bool
	Err                 error
}

// OnBookingCancelled unwinds the ledger for a cancelled stay in three
// independent steps: reverse the stay's commissions, undo any signup bonus
// upgrade tied to the booking user, and reverse the stay's coupon
// redemption. Steps run in order but a failure in one never stops the rest.
func (s *Service) OnBookingCancelled(ctx context.Context, params BookingCancelledParams) CascadeResult {
	logCtx := s.logg.WithStayID(ctx, params.StayID.String())
	logCtx = s.logg.WithField(logCtx, "was_paid", params.WasPaid)

	var result CascadeResult

	reversed, err := s.referrals.ReverseForStay(ctx, params.StayID, reversalReason)
	if err != nil {
		s.logg.Error(logCtx, "commission reversal failed for cancelled stay", err)
		result.Err = multierr.Append(result.Err, err)
	} else {
		result.CommissionsReversed = reversed
	}

	if params.BookingUserID != nil {
		if err := s.referrals.DowngradeSignupBonusOnBookingCancel(ctx, *params.BookingUserID); err != nil {
			s.logg.Error(s.logg.WithField(logCtx, "booking_user_id", params.BookingUserID.String()),
				"signup bonus downgrade failed for cancelled stay", err)
			result.Err = multierr.Append(result.Err, err)
		} else {
			result.BonusDowngraded = true
		}
	}

	if err := s.wallets.Reverse(ctx, params.StayID); err != nil {
		s.logg.Error(logCtx, "redemption reversal failed for cancelled stay", err)
		result.Err = multierr.Append(result.Err, err)
	} else {
		result.RedemptionReversed = true
	}

	if result.Err == nil && result.CommissionsReversed > 0 {
		s.logg.Info(s.logg.WithField(logCtx, "commissions_reversed", result.CommissionsReversed),
			"ledger unwound for cancelled stay")
	}
	return result
}
