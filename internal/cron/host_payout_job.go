package cron

import (
	"context"
	"fmt"

	"github.com/roamnest/roamnest-backend/internal/payout"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type hostSweeper interface {
	RunBatch(ctx context.Context, limit int) (payout.Summary, error)
}

// HostPayoutJobParams configure the host earnings sweep job.
type HostPayoutJobParams struct {
	Logger *logger.Logger
	Sweep  hostSweeper
	Limit  int
}

// NewHostPayoutJob builds the cron job that backfills payout items for
// completed paid stays and settles the due ones per currency.
func NewHostPayoutJob(params HostPayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweep == nil {
		return nil, fmt.Errorf("host sweep required")
	}
	return &hostPayoutJob{
		logg:  params.Logger,
		sweep: params.Sweep,
		limit: params.Limit,
	}, nil
}

type hostPayoutJob struct {
	logg  *logger.Logger
	sweep hostSweeper
	limit int
}

func (j *hostPayoutJob) Name() string { return "host-payout-sweep" }

func (j *hostPayoutJob) Run(ctx context.Context) error {
	summary, err := j.sweep.RunBatch(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("host payout sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed":    summary.Processed,
		"failed":       summary.Failed,
		"skipped":      summary.Skipped,
		"total_amount": summary.TotalAmount.String(),
	})
	j.logg.Info(logCtx, "host payout sweep complete")
	if summary.Failed > 0 {
		j.logg.Warn(logCtx, "host payout sweep had failed items")
	}
	return nil
}
