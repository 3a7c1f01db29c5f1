package goal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

// couponGranter adds coupon capacity inside the caller's transaction.
type couponGranter interface {
	GrantCoupons(ctx context.Context, tx *gorm.DB, influencerID uuid.UUID, count int) error
}

// ServiceParams groups dependencies for the goal engine.
type ServiceParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Wallets couponGranter
	Now     func() time.Time
}

// Service advances goal progress as referral events land and grants each
// goal's reward exactly once. It always runs inside the transaction that
// created the event, so progress never drifts from the event ledger.
type Service struct {
	logg    *logger.Logger
	repo    Repository
	wallets couponGranter
	now     func() time.Time
}

// NewService builds a goal service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("goal repository required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("coupon granter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:    params.Logger,
		repo:    params.Repo,
		wallets: params.Wallets,
		now:     now,
	}, nil
}

// HandleEvent bumps every active goal matching the event type by one for the
// influencer, inside the caller's transaction. Only newly created events may
// be passed in; replayed duplicates must never reach this method.
func (s *Service) HandleEvent(ctx context.Context, tx *gorm.DB, eventType enums.ReferralEventType, influencerID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	goals, err := repo.ListActiveByEventType(ctx, eventType)
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}
	for _, g := range goals {
		if err := s.bump(ctx, tx, repo, g, influencerID); err != nil {
			return fmt.Errorf("bump goal %s: %w", g.Code, err)
		}
	}
	return nil
}

func (s *Service) bump(ctx context.Context, tx *gorm.DB, repo Repository, g models.Goal, influencerID uuid.UUID) error {
	progress, err := repo.FindProgressForUpdate(ctx, g.ID, influencerID)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = &models.GoalProgress{
			GoalID:       g.ID,
			InfluencerID: influencerID,
		}
		created, err := repo.CreateProgress(ctx, progress)
		if err != nil {
			return err
		}
		if !created {
			progress, err = repo.FindProgressForUpdate(ctx, g.ID, influencerID)
			if err != nil {
				return err
			}
			if progress == nil {
				return fmt.Errorf("goal progress vanished after conflict")
			}
		}
	}

	newCount := progress.ProgressCount + 1
	updates := map[string]any{"progress_count": newCount}

	now := s.now().UTC()
	completed := newCount >= g.TargetCount
	if completed && progress.CompletedAt == nil {
		updates["completed_at"] = now
	}

	if completed && progress.RewardGrantedAt == nil {
		commissionID, err := s.grantReward(ctx, tx, repo, g, influencerID)
		if err != nil {
			return err
		}
		updates["reward_granted_at"] = now
		if commissionID != nil {
			updates["reward_commission_id"] = *commissionID
		}
		logCtx := s.logg.WithInfluencerID(ctx, influencerID.String())
		s.logg.Info(logCtx, fmt.Sprintf("goal %s completed, %s reward granted", g.Code, g.RewardType))
	}

	return repo.UpdateProgress(ctx, progress.ID, updates)
}

func (s *Service) grantReward(ctx context.Context, tx *gorm.DB, repo Repository, g models.Goal, influencerID uuid.UUID) (*uuid.UUID, error) {
	switch g.RewardType {
	case enums.GoalRewardCouponGrant:
		count := int(g.RewardValue.IntPart())
		if count <= 0 {
			return nil, fmt.Errorf("goal %s has non-positive coupon reward", g.Code)
		}
		return nil, s.wallets.GrantCoupons(ctx, tx, influencerID, count)
	case enums.GoalRewardCash:
		commission := &models.Commission{
			InfluencerID: influencerID,
			EventType:    g.EventType,
			Amount:       g.RewardValue,
			Currency:     g.RewardCurrency,
			Status:       enums.CommissionStatusEligible,
		}
		if err := repo.CreateRewardCommission(ctx, commission); err != nil {
			return nil, err
		}
		return &commission.ID, nil
	default:
		return nil, fmt.Errorf("goal %s has unknown reward type %q", g.Code, g.RewardType)
	}
}
