package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
	"github.com/roamnest/roamnest-backend/pkg/fx"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config controls the coupon discount math.
type Config struct {
	DiscountPct    int
	DiscountCapUSD decimal.Decimal
}

// ServiceParams groups dependencies for the wallet service.
type ServiceParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Config Config
	Now    func() time.Time
}

// Service owns the coupon wallet and its redemption ledger. All counter
// mutations run inside one transaction holding the affected row locks.
type Service struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	config Config
	now    func() time.Time
}

// NewService builds a wallet service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Config.DiscountPct <= 0 || params.Config.DiscountPct > 100 {
		return nil, fmt.Errorf("discount pct must be in (0, 100]")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		config: params.Config,
		now:    now,
	}, nil
}

// Available reports how many coupons the influencer can still spend:
// granted minus used minus outstanding pending reservations. The value is
// always computed on read, never stored.
func (s *Service) Available(ctx context.Context, influencerID uuid.UUID) (int, error) {
	wallet, err := s.repo.FindWalletByInfluencer(ctx, influencerID)
	if err != nil {
		return 0, fmt.Errorf("find wallet: %w", err)
	}
	if wallet == nil {
		return 0, nil
	}
	pending, err := s.repo.CountPendingRedemptions(ctx, influencerID)
	if err != nil {
		return 0, fmt.Errorf("count pending redemptions: %w", err)
	}
	return wallet.TotalGranted - wallet.TotalUsed - int(pending), nil
}

// CouponPlan is the priced outcome of a planCoupon call. Apply=false means
// the booking proceeds with no discount; it is never an error.
type CouponPlan struct {
	Apply          bool
	InfluencerID   uuid.UUID
	WalletID       uuid.UUID
	DiscountAmount decimal.Decimal
	Currency       enums.Currency
}

// PlanCoupon prices one coupon against the booking total: pct of the total,
// capped by the configured USD ceiling converted into the stay currency.
func (s *Service) PlanCoupon(ctx context.Context, influencerID uuid.UUID, totalBeforeDiscount decimal.Decimal, currency enums.Currency) (CouponPlan, error) {
	if !currency.IsValid() {
		return CouponPlan{}, errors.New(errors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}
	available, err := s.Available(ctx, influencerID)
	if err != nil {
		return CouponPlan{}, err
	}
	if available <= 0 {
		return CouponPlan{}, nil
	}
	wallet, err := s.repo.FindWalletByInfluencer(ctx, influencerID)
	if err != nil {
		return CouponPlan{}, fmt.Errorf("find wallet: %w", err)
	}
	if wallet == nil {
		return CouponPlan{}, nil
	}

	discount := totalBeforeDiscount.
		Mul(decimal.NewFromInt(int64(s.config.DiscountPct))).
		Div(decimal.NewFromInt(100))
	if s.config.DiscountCapUSD.IsPositive() {
		cap, err := fx.Convert(s.config.DiscountCapUSD, enums.CurrencyUSD, currency)
		if err != nil {
			return CouponPlan{}, fmt.Errorf("convert discount cap: %w", err)
		}
		if discount.GreaterThan(cap) {
			discount = cap
		}
	}
	discount = discount.Round(2)
	if !discount.IsPositive() {
		return CouponPlan{}, nil
	}

	return CouponPlan{
		Apply:          true,
		InfluencerID:   influencerID,
		WalletID:       wallet.ID,
		DiscountAmount: discount,
		Currency:       currency,
	}, nil
}

// Reserve locks in a plan against a booking by creating a pending redemption.
// The unique stay_id constraint makes retries converge on one row; a pending
// row whose priced discount drifted is refreshed in place.
func (s *Service) Reserve(ctx context.Context, plan CouponPlan, stayID, userID uuid.UUID) (*models.Redemption, error) {
	if !plan.Apply {
		return nil, errors.New(errors.CodeValidation, "cannot reserve a plan that does not apply")
	}
	if stayID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "stay id is required")
	}

	var result *models.Redemption
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindRedemptionByStayForUpdate(ctx, stayID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == enums.RedemptionStatusPending && !existing.DiscountAmount.Equal(plan.DiscountAmount) {
				updates := map[string]any{
					"discount_amount": plan.DiscountAmount,
					"currency":        plan.Currency,
				}
				if err := repo.UpdateRedemption(ctx, existing.ID, updates); err != nil {
					return err
				}
				existing.DiscountAmount = plan.DiscountAmount
				existing.Currency = plan.Currency
			}
			result = existing
			return nil
		}

		redemption := &models.Redemption{
			WalletID:       plan.WalletID,
			InfluencerID:   plan.InfluencerID,
			UserID:         userID,
			StayID:         stayID,
			Status:         enums.RedemptionStatusPending,
			DiscountAmount: plan.DiscountAmount,
			Currency:       plan.Currency,
			ReservedAt:     s.now().UTC(),
		}
		created, err := repo.CreateRedemption(ctx, redemption)
		if err != nil {
			return err
		}
		if !created {
			existing, findErr := repo.FindRedemptionByStay(ctx, stayID)
			if findErr != nil {
				return findErr
			}
			result = existing
			return nil
		}
		result = redemption
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize consumes the reservation once the booking's payment is confirmed:
// the redemption flips to redeemed and total_used goes up by one. Calling it
// again, or after a reversal, is a no-op.
func (s *Service) Finalize(ctx context.Context, stayID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		redemption, err := repo.FindRedemptionByStayForUpdate(ctx, stayID)
		if err != nil {
			return err
		}
		if redemption == nil {
			return nil
		}
		if redemption.Status != enums.RedemptionStatusPending {
			return nil
		}

		wallet, err := repo.FindWalletByInfluencerForUpdate(ctx, redemption.InfluencerID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return errors.New(errors.CodeNotFound, "wallet missing for redemption")
		}

		now := s.now().UTC()
		if err := repo.UpdateRedemption(ctx, redemption.ID, map[string]any{
			"status":      enums.RedemptionStatusRedeemed,
			"redeemed_at": now,
		}); err != nil {
			return err
		}
		return repo.UpdateWallet(ctx, wallet.ID, map[string]any{
			"total_used": gorm.Expr("total_used + ?", 1),
		})
	})
}

// Reverse undoes a redemption on cancellation. A redeemed row gives its
// coupon back (floored at zero); a pending row just stops counting against
// availability. Reversing twice is a no-op.
func (s *Service) Reverse(ctx context.Context, stayID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		redemption, err := repo.FindRedemptionByStayForUpdate(ctx, stayID)
		if err != nil {
			return err
		}
		if redemption == nil {
			return nil
		}
		if redemption.Status == enums.RedemptionStatusReversed {
			return nil
		}

		now := s.now().UTC()
		if redemption.Status == enums.RedemptionStatusRedeemed {
			wallet, err := repo.FindWalletByInfluencerForUpdate(ctx, redemption.InfluencerID)
			if err != nil {
				return err
			}
			if wallet != nil {
				if err := repo.UpdateWallet(ctx, wallet.ID, map[string]any{
					"total_used": gorm.Expr("CASE WHEN total_used > 0 THEN total_used - 1 ELSE 0 END"),
				}); err != nil {
					return err
				}
			}
		}
		return repo.UpdateRedemption(ctx, redemption.ID, map[string]any{
			"status":      enums.RedemptionStatusReversed,
			"reversed_at": now,
		})
	})
}

// GrantCoupons adds coupon capacity inside the caller's transaction, creating
// the wallet on first grant. Used by the goal engine's reward path.
func (s *Service) GrantCoupons(ctx context.Context, tx *gorm.DB, influencerID uuid.UUID, count int) error {
	if count <= 0 {
		return errors.New(errors.CodeValidation, "grant count must be positive")
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindWalletByInfluencerForUpdate(ctx, influencerID)
	if err != nil {
		return err
	}
	if wallet == nil {
		wallet = &models.Wallet{InfluencerID: influencerID, TotalGranted: count}
		created, err := repo.CreateWallet(ctx, wallet)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		wallet, err = repo.FindWalletByInfluencerForUpdate(ctx, influencerID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return errors.New(errors.CodeInternal, "wallet vanished during grant")
		}
	}
	return repo.AddGrantedCoupons(ctx, wallet.ID, count)
}

// ExpireStalePending reverses pending reservations older than ttl so unpaid
// bookings stop holding coupon capacity.
func (s *Service) ExpireStalePending(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-ttl)
	stale, err := s.repo.FindStalePendingRedemptions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale redemptions: %w", err)
	}
	count := 0
	for _, redemption := range stale {
		if err := s.Reverse(ctx, redemption.StayID); err != nil {
			logCtx := s.logg.WithStayID(ctx, redemption.StayID.String())
			s.logg.Error(logCtx, "failed to expire pending redemption", err)
			continue
		}
		count++
	}
	return count, nil
}
