package cron

import (
	"context"
	"fmt"

	"github.com/roamnest/roamnest-backend/internal/payout"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type influencerSweeper interface {
	RunBatch(ctx context.Context, limit int) (payout.Summary, error)
}

// InfluencerPayoutJobParams configure the influencer commission sweep job.
type InfluencerPayoutJobParams struct {
	Logger *logger.Logger
	Sweep  influencerSweeper
	Limit  int
}

// NewInfluencerPayoutJob builds the cron job that settles eligible and
// matured influencer commissions into provider payouts.
func NewInfluencerPayoutJob(params InfluencerPayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweep == nil {
		return nil, fmt.Errorf("influencer sweep required")
	}
	return &influencerPayoutJob{
		logg:  params.Logger,
		sweep: params.Sweep,
		limit: params.Limit,
	}, nil
}

type influencerPayoutJob struct {
	logg  *logger.Logger
	sweep influencerSweeper
	limit int
}

func (j *influencerPayoutJob) Name() string { return "influencer-payout-sweep" }

func (j *influencerPayoutJob) Run(ctx context.Context) error {
	summary, err := j.sweep.RunBatch(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("influencer payout sweep: %w", err)
	}
	logCtx := j.logg.WithBatchID(ctx, summary.BatchID)
	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"processed":    summary.Processed,
		"failed":       summary.Failed,
		"skipped":      summary.Skipped,
		"total_amount": summary.TotalAmount.String(),
	})
	j.logg.Info(logCtx, "influencer payout sweep complete")
	if summary.Failed > 0 {
		j.logg.Warn(logCtx, "influencer payout sweep had failed groups")
	}
	return nil
}
