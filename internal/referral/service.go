package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/pkg/config"
	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
	"github.com/roamnest/roamnest-backend/pkg/fx"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// goalEngine advances goal progress for newly created events, inside the
// event's own transaction.
type goalEngine interface {
	HandleEvent(ctx context.Context, tx *gorm.DB, eventType enums.ReferralEventType, influencerID uuid.UUID) error
}

// Config holds the parsed commission amounts. Signup bonuses are USD;
// booking bonuses are priced per night in USD and converted into the stay
// currency.
type Config struct {
	SignupBonus         decimal.Decimal
	SignupBonusUpgraded decimal.Decimal
	BookingPerNight     decimal.Decimal
	HoldWindow          time.Duration
}

// ParseConfig converts the raw env strings into commission amounts.
func ParseConfig(raw config.ReferralConfig) (Config, error) {
	signup, err := decimal.NewFromString(raw.SignupBonusUSD)
	if err != nil {
		return Config{}, fmt.Errorf("parse signup bonus: %w", err)
	}
	upgraded, err := decimal.NewFromString(raw.SignupBonusUpgradedUSD)
	if err != nil {
		return Config{}, fmt.Errorf("parse upgraded signup bonus: %w", err)
	}
	perNight, err := decimal.NewFromString(raw.BookingPerNightUSD)
	if err != nil {
		return Config{}, fmt.Errorf("parse booking per-night bonus: %w", err)
	}
	return Config{
		SignupBonus:         signup,
		SignupBonusUpgraded: upgraded,
		BookingPerNight:     perNight,
		HoldWindow:          raw.HoldWindow,
	}, nil
}

// ServiceParams groups dependencies for the referral service.
type ServiceParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Goals  goalEngine
	Config Config
	Now    func() time.Time
}

// Service owns the referral event ledger and the commission ledger. The
// composite unique key on events is the single deduplication point for the
// pipeline; commissions and goal progress only move when an event row is
// newly created.
type Service struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	goals  goalEngine
	config Config
	now    func() time.Time
}

// NewService builds a referral service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("referral repository required")
	}
	if params.Goals == nil {
		return nil, fmt.Errorf("goal engine required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		goals:  params.Goals,
		config: params.Config,
		now:    now,
	}, nil
}

// RecordEventParams describes one signup or booking credit attempt.
type RecordEventParams struct {
	EventType    enums.ReferralEventType
	InfluencerID uuid.UUID
	SignupUserID uuid.UUID
	StayID       uuid.UUID
	Nights       int
	Currency     enums.Currency
	OccurredAt   time.Time
}

func (p RecordEventParams) subjectID() uuid.UUID {
	if p.EventType == enums.ReferralEventSignup {
		return p.SignupUserID
	}
	return p.StayID
}

func (p RecordEventParams) validate() error {
	if !p.EventType.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unknown event type %q", p.EventType))
	}
	if p.InfluencerID == uuid.Nil {
		return errors.New(errors.CodeValidation, "influencer id is required")
	}
	switch p.EventType {
	case enums.ReferralEventSignup:
		if p.SignupUserID == uuid.Nil {
			return errors.New(errors.CodeValidation, "signup user id is required")
		}
	case enums.ReferralEventBooking:
		if p.StayID == uuid.Nil {
			return errors.New(errors.CodeValidation, "stay id is required")
		}
		if p.Nights <= 0 {
			return errors.New(errors.CodeValidation, "nights must be positive")
		}
		if !p.Currency.IsValid() {
			return errors.New(errors.CodeValidation, fmt.Sprintf("unsupported currency %q", p.Currency))
		}
	}
	return nil
}

// RecordEventResult reports whether the event was newly created and, if so,
// the commission it minted. A replayed event returns the existing row with
// Created=false and a nil Commission.
type RecordEventResult struct {
	Event      *models.ReferralEvent
	Created    bool
	Commission *models.Commission
}

// RecordEvent is the idempotent ingestion point. The insert and everything
// keyed off it, commission creation and goal progress, share one transaction.
func (s *Service) RecordEvent(ctx context.Context, params RecordEventParams) (RecordEventResult, error) {
	if err := params.validate(); err != nil {
		return RecordEventResult{}, err
	}
	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	occurredAt = occurredAt.UTC()

	var result RecordEventResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		event := &models.ReferralEvent{
			EventType:    params.EventType,
			SubjectID:    params.subjectID(),
			InfluencerID: params.InfluencerID,
			OccurredAt:   occurredAt,
		}
		created, err := repo.CreateEvent(ctx, event)
		if err != nil {
			return err
		}
		if !created {
			existing, findErr := repo.FindEventByKey(ctx, params.EventType, params.subjectID(), params.InfluencerID)
			if findErr != nil {
				return findErr
			}
			if existing == nil {
				return errors.New(errors.CodeInternal, "referral event vanished after conflict")
			}
			result = RecordEventResult{Event: existing, Created: false}
			return nil
		}

		commission, err := s.createCommission(ctx, repo, params, occurredAt)
		if err != nil {
			return err
		}
		if err := s.goals.HandleEvent(ctx, tx, params.EventType, params.InfluencerID); err != nil {
			return err
		}
		result = RecordEventResult{Event: event, Created: true, Commission: commission}
		return nil
	})
	if err != nil {
		return RecordEventResult{}, err
	}
	return result, nil
}

// createCommission mints at most one commission for a newly created event.
// Zero or negative computed amounts mint nothing.
func (s *Service) createCommission(ctx context.Context, repo Repository, params RecordEventParams, occurredAt time.Time) (*models.Commission, error) {
	var amount decimal.Decimal
	currency := enums.CurrencyUSD

	switch params.EventType {
	case enums.ReferralEventSignup:
		amount = s.config.SignupBonus
	case enums.ReferralEventBooking:
		currency = params.Currency
		gross := s.config.BookingPerNight.Mul(decimal.NewFromInt(int64(params.Nights)))
		converted, err := fx.Convert(gross, enums.CurrencyUSD, currency)
		if err != nil {
			return nil, fmt.Errorf("convert booking bonus: %w", err)
		}
		amount = converted
	}
	if !amount.IsPositive() {
		return nil, nil
	}

	commission := &models.Commission{
		InfluencerID: params.InfluencerID,
		EventType:    params.EventType,
		Amount:       amount.Round(2),
		Currency:     currency,
		Status:       enums.CommissionStatusEligible,
	}
	switch params.EventType {
	case enums.ReferralEventSignup:
		id := params.SignupUserID
		commission.SignupUserID = &id
	case enums.ReferralEventBooking:
		id := params.StayID
		commission.StayID = &id
	}
	if s.config.HoldWindow > 0 {
		holdUntil := occurredAt.Add(s.config.HoldWindow)
		commission.Status = enums.CommissionStatusHold
		commission.HoldUntil = &holdUntil
	}

	created, err := repo.CreateCommission(ctx, commission)
	if err != nil {
		return nil, err
	}
	if !created {
		// the partial unique indexes make a concurrent duplicate harmless
		return nil, nil
	}
	return commission, nil
}

// LinkSignupResult reports the influencer a referral code resolved to and
// the (possibly pre-existing) signup event.
type LinkSignupResult struct {
	Influencer *models.Influencer
	Event      *models.ReferralEvent
	Created    bool
}

// LinkSignup resolves a referral code for a freshly registered user and
// records the signup event. Invalid codes, self-referrals, and codes
// conflicting with an earlier link fail before any ledger row is touched.
func (s *Service) LinkSignup(ctx context.Context, code string, newUserID uuid.UUID) (LinkSignupResult, error) {
	if code == "" {
		return LinkSignupResult{}, errors.New(errors.CodeValidation, "referral code is required")
	}
	if newUserID == uuid.Nil {
		return LinkSignupResult{}, errors.New(errors.CodeValidation, "user id is required")
	}

	influencer, err := s.repo.FindInfluencerByCode(ctx, code)
	if err != nil {
		return LinkSignupResult{}, fmt.Errorf("find influencer: %w", err)
	}
	if influencer == nil || !influencer.IsActive {
		return LinkSignupResult{}, errors.New(errors.CodeValidation, fmt.Sprintf("invalid referral code %q", code))
	}
	if influencer.UserID == newUserID {
		return LinkSignupResult{}, errors.New(errors.CodeValidation, "self-referral is not allowed")
	}

	existing, err := s.repo.FindSignupEventBySubject(ctx, newUserID)
	if err != nil {
		return LinkSignupResult{}, fmt.Errorf("find signup event: %w", err)
	}
	if existing != nil && existing.InfluencerID != influencer.ID {
		return LinkSignupResult{}, errors.New(errors.CodeConflict, "user is already linked to a different influencer")
	}

	recorded, err := s.RecordEvent(ctx, RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: influencer.ID,
		SignupUserID: newUserID,
	})
	if err != nil {
		return LinkSignupResult{}, err
	}
	return LinkSignupResult{
		Influencer: influencer,
		Event:      recorded.Event,
		Created:    recorded.Created,
	}, nil
}

// UpgradeSignupBonusOnBooking raises a signup commission to the upgraded
// amount when the referred user's first qualifying booking confirms. Paid,
// reversed, and already-upgraded commissions are left alone.
func (s *Service) UpgradeSignupBonusOnBooking(ctx context.Context, signupUserID uuid.UUID) error {
	if signupUserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "signup user id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commission, err := repo.FindSignupCommissionForUpdate(ctx, signupUserID)
		if err != nil {
			return err
		}
		if commission == nil || commission.Status.IsTerminal() {
			return nil
		}
		if !commission.Amount.LessThan(s.config.SignupBonusUpgraded) {
			return nil
		}
		return repo.UpdateCommission(ctx, commission.ID, map[string]any{
			"amount": s.config.SignupBonusUpgraded,
		})
	})
}

// DowngradeSignupBonusOnBookingCancel undoes the upgrade when the qualifying
// booking cancels, restoring the base amount unless the commission was
// already paid out.
func (s *Service) DowngradeSignupBonusOnBookingCancel(ctx context.Context, signupUserID uuid.UUID) error {
	if signupUserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "signup user id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commission, err := repo.FindSignupCommissionForUpdate(ctx, signupUserID)
		if err != nil {
			return err
		}
		if commission == nil || commission.Status == enums.CommissionStatusPaid {
			return nil
		}
		if !commission.Amount.GreaterThan(s.config.SignupBonus) {
			return nil
		}
		return repo.UpdateCommission(ctx, commission.ID, map[string]any{
			"amount": s.config.SignupBonus,
		})
	})
}

// ReverseForStay reverses every hold or eligible commission tied to a
// cancelled stay. Paid commissions stay paid; already-reversed rows are
// skipped. Returns the number of rows reversed.
func (s *Service) ReverseForStay(ctx context.Context, stayID uuid.UUID, reason string) (int, error) {
	if stayID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "stay id is required")
	}
	reversed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commissions, err := repo.FindCommissionsByStayForUpdate(ctx, stayID)
		if err != nil {
			return err
		}
		for _, commission := range commissions {
			if commission.Status.IsTerminal() {
				continue
			}
			updates := map[string]any{
				"status":          enums.CommissionStatusReversed,
				"reversal_reason": reason,
			}
			if err := repo.UpdateCommission(ctx, commission.ID, updates); err != nil {
				return err
			}
			reversed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reversed, nil
}
