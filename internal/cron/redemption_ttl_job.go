package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type pendingRedemptionExpirer interface {
	ExpireStalePending(ctx context.Context, ttl time.Duration) (int, error)
}

// RedemptionTTLJobParams configure the stale reservation expirer.
type RedemptionTTLJobParams struct {
	Logger  *logger.Logger
	Wallets pendingRedemptionExpirer
	TTL     time.Duration
}

// NewRedemptionTTLJob builds the cron job that reverses coupon reservations
// whose booking never reached payment confirmation. Reversing them returns
// the reserved capacity to the wallet's available balance.
func NewRedemptionTTLJob(params RedemptionTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("redemption ttl must be positive")
	}
	return &redemptionTTLJob{
		logg:    params.Logger,
		wallets: params.Wallets,
		ttl:     params.TTL,
	}, nil
}

type redemptionTTLJob struct {
	logg    *logger.Logger
	wallets pendingRedemptionExpirer
	ttl     time.Duration
}

func (j *redemptionTTLJob) Name() string { return "redemption-ttl" }

func (j *redemptionTTLJob) Run(ctx context.Context) error {
	expired, err := j.wallets.ExpireStalePending(ctx, j.ttl)
	if err != nil {
		return fmt.Errorf("expire stale redemptions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "stale redemption expiration complete")
	return nil
}
