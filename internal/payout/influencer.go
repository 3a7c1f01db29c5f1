package payout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/internal/payout/provider"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/logger"
	"github.com/roamnest/roamnest-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// payoutSender is the provider registry surface the sweeps depend on.
type payoutSender interface {
	SendPayout(ctx context.Context, req provider.Request) (provider.Result, error)
}

// SweepConfig bounds one sweep run.
type SweepConfig struct {
	FetchLimit int
	GroupLimit int
	HostFeePct int
}

// InfluencerSweepParams groups dependencies for the influencer processor.
type InfluencerSweepParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      Repository
	Providers payoutSender
	Metrics   *metrics.PayoutMetrics
	Config    SweepConfig
	Now       func() time.Time
}

// InfluencerSweep settles matured commissions in batches: group by
// influencer and currency, pay each group through the provider registry,
// mark the group's rows paid. Groups fail and retry independently.
type InfluencerSweep struct {
	logg      *logger.Logger
	db        txRunner
	repo      Repository
	providers payoutSender
	metrics   *metrics.PayoutMetrics
	config    SweepConfig
	now       func() time.Time
	batchID   func() string
}

// NewInfluencerSweep builds the influencer payout processor.
func NewInfluencerSweep(params InfluencerSweepParams) (*InfluencerSweep, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Providers == nil {
		return nil, fmt.Errorf("provider registry required")
	}
	if params.Config.FetchLimit <= 0 {
		params.Config.FetchLimit = 2000
	}
	if params.Config.GroupLimit <= 0 {
		params.Config.GroupLimit = 200
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	gen, err := nanoid.Standard(12)
	if err != nil {
		return nil, fmt.Errorf("init batch token generator: %w", err)
	}
	return &InfluencerSweep{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		providers: params.Providers,
		metrics:   params.Metrics,
		config:    params.Config,
		now:       now,
		batchID: func() string {
			return fmt.Sprintf("pib_%s_%s", now().UTC().Format("20060102T150405"), gen())
		},
	}, nil
}

// commissionGroup is one influencer's settleable total in one currency.
type commissionGroup struct {
	influencerID uuid.UUID
	currency     enums.Currency
	total        decimal.Decimal
	ids          []uuid.UUID
}

// RunBatch executes one sweep. limit caps the number of groups settled this
// run; zero or negative falls back to the configured group limit.
func (s *InfluencerSweep) RunBatch(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = s.config.GroupLimit
	}
	batchID := s.batchID()
	now := s.now().UTC()
	logCtx := s.logg.WithBatchID(ctx, batchID)

	groups, err := s.collectGroups(ctx, now)
	if err != nil {
		return Summary{BatchID: batchID}, err
	}
	if len(groups) > limit {
		groups = groups[:limit]
	}

	summary := Summary{BatchID: batchID, TotalAmount: decimal.Zero}
	for _, group := range groups {
		outcome, settled := s.settleGroup(logCtx, batchID, now, group)
		switch outcome {
		case groupPaid:
			summary.Processed++
			summary.TotalAmount = summary.TotalAmount.Add(settled)
		case groupSkipped:
			summary.Skipped++
		case groupFailed:
			summary.Failed++
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveSweep("influencer", summary.Processed, summary.Skipped, summary.Failed)
	}
	s.logg.Info(logCtx, fmt.Sprintf(
		"influencer payout sweep done: processed=%d skipped=%d failed=%d total=%s",
		summary.Processed, summary.Skipped, summary.Failed, summary.TotalAmount.StringFixed(2)))
	return summary, nil
}

// collectGroups fetches settleable commissions of both kinds and folds them
// into per-influencer, per-currency groups in a stable order.
func (s *InfluencerSweep) collectGroups(ctx context.Context, now time.Time) ([]commissionGroup, error) {
	byKey := map[string]*commissionGroup{}
	var order []string

	for _, kind := range []enums.ReferralEventType{enums.ReferralEventSignup, enums.ReferralEventBooking} {
		commissions, err := s.repo.FindSettleableCommissions(ctx, kind, now, s.config.FetchLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch %s commissions: %w", kind, err)
		}
		for _, c := range commissions {
			key := c.InfluencerID.String() + ":" + string(c.Currency)
			group, ok := byKey[key]
			if !ok {
				group = &commissionGroup{
					influencerID: c.InfluencerID,
					currency:     c.Currency,
					total:        decimal.Zero,
				}
				byKey[key] = group
				order = append(order, key)
			}
			group.total = group.total.Add(c.Amount)
			group.ids = append(group.ids, c.ID)
		}
	}

	sort.Strings(order)
	groups := make([]commissionGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups, nil
}

type groupOutcome int

const (
	groupPaid groupOutcome = iota
	groupSkipped
	groupFailed
)

// settleGroup pays one group and marks its rows, returning the amount of the
// rows actually flipped to paid. Every outcome leaves the remaining groups
// untouched; an unpaid group stays settleable for the next sweep.
func (s *InfluencerSweep) settleGroup(ctx context.Context, batchID string, now time.Time, group commissionGroup) (groupOutcome, decimal.Decimal) {
	logCtx := s.logg.WithInfluencerID(ctx, group.influencerID.String())

	account, err := s.repo.FindAccountForInfluencer(ctx, group.influencerID)
	if err != nil {
		s.logg.Error(logCtx, "failed to look up payout account", err)
		return groupFailed, decimal.Zero
	}
	if account == nil || account.Provider != enums.PayoutProviderStripe || !account.Status.IsSettleable() {
		return groupSkipped, decimal.Zero
	}

	result, err := s.providers.SendPayout(ctx, provider.Request{
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		Amount:            group.total,
		Currency:          group.currency,
		IdempotencyKey:    fmt.Sprintf("%s:%s:%s", batchID, group.influencerID, group.currency),
		Description:       "influencer commission payout",
	})
	if err != nil {
		s.logg.Error(logCtx, "provider settlement failed", err)
		return groupFailed, decimal.Zero
	}

	// A reversal can land between the fetch and the settlement. Lock the
	// rows that are still settleable and report the amount of exactly that
	// set, not the amount quoted to the provider.
	settled := decimal.Zero
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, lockErr := repo.FindSettleableByIDsForUpdate(ctx, group.ids)
		if lockErr != nil {
			return lockErr
		}
		settled = decimal.Zero
		ids := make([]uuid.UUID, 0, len(rows))
		for _, c := range rows {
			settled = settled.Add(c.Amount)
			ids = append(ids, c.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		_, markErr := repo.MarkCommissionsPaid(ctx, ids, result.ProviderPayoutID, result.PaidAt)
		return markErr
	})
	if err != nil {
		// the provider call went through; the idempotency key protects the
		// retry on the next sweep
		s.logg.Error(logCtx, "failed to mark commissions paid after settlement", err)
		return groupFailed, decimal.Zero
	}
	if !settled.Equal(group.total) {
		mismatchCtx := s.logg.WithFields(logCtx, map[string]any{
			"transferred": group.total.StringFixed(2),
			"settled":     settled.StringFixed(2),
		})
		s.logg.Warn(mismatchCtx, "commissions reversed mid-sweep; settled amount differs from transfer")
	}

	if s.metrics != nil {
		s.metrics.ObserveSettled("influencer", string(group.currency), settled)
	}
	return groupPaid, settled
}
