package payout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/internal/payout/provider"
	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/logger"
	"github.com/roamnest/roamnest-backend/pkg/metrics"
)

// HostSweepParams groups dependencies for the host processor.
type HostSweepParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      Repository
	Providers payoutSender
	Metrics   *metrics.PayoutMetrics
	Config    SweepConfig
	Now       func() time.Time
}

// HostSweep settles host earnings for completed, paid stays. Each sweep
// first backfills missing payout items, then settles due items grouped into
// one batch per currency. Items succeed or fail independently; the batch
// status is a summary of the run, never a rollback.
type HostSweep struct {
	logg      *logger.Logger
	db        txRunner
	repo      Repository
	providers payoutSender
	metrics   *metrics.PayoutMetrics
	config    SweepConfig
	now       func() time.Time
}

// NewHostSweep builds the host payout processor.
func NewHostSweep(params HostSweepParams) (*HostSweep, error) {
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
	if params.Config.HostFeePct < 0 || params.Config.HostFeePct >= 100 {
		return nil, fmt.Errorf("host fee pct must be in [0, 100)")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &HostSweep{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		providers: params.Providers,
		metrics:   params.Metrics,
		config:    params.Config,
		now:       now,
	}, nil
}

// RunBatch executes one host sweep. limit caps items settled per run; zero
// or negative falls back to the fetch limit.
func (s *HostSweep) RunBatch(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = s.config.FetchLimit
	}
	now := s.now().UTC()

	if err := s.backfill(ctx, now); err != nil {
		return Summary{}, err
	}

	items, err := s.repo.FindDuePayoutItems(ctx, now, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch due payout items: %w", err)
	}
	if len(items) == 0 {
		return Summary{TotalAmount: decimal.Zero}, nil
	}

	summary := Summary{TotalAmount: decimal.Zero}
	for _, currency := range currenciesOf(items) {
		batchSummary, err := s.settleCurrency(ctx, now, currency, itemsIn(items, currency))
		if err != nil {
			return summary, err
		}
		summary.Processed += batchSummary.Processed
		summary.Skipped += batchSummary.Skipped
		summary.Failed += batchSummary.Failed
		summary.TotalAmount = summary.TotalAmount.Add(batchSummary.TotalAmount)
		if summary.BatchID == "" {
			summary.BatchID = batchSummary.BatchID
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveSweep("host", summary.Processed, summary.Skipped, summary.Failed)
	}
	s.logg.Info(ctx, fmt.Sprintf(
		"host payout sweep done: processed=%d skipped=%d failed=%d total=%s",
		summary.Processed, summary.Skipped, summary.Failed, summary.TotalAmount.StringFixed(2)))
	return summary, nil
}

// backfill creates a payout item for every completed, paid stay that lacks
// one. The conditional insert absorbs concurrent or repeated runs.
func (s *HostSweep) backfill(ctx context.Context, now time.Time) error {
	stays, err := s.repo.FindStaysMissingPayoutItems(ctx, s.config.FetchLimit)
	if err != nil {
		return fmt.Errorf("find stays missing payout items: %w", err)
	}
	feeFactor := decimal.NewFromInt(int64(100 - s.config.HostFeePct)).Div(decimal.NewFromInt(100))
	for _, stay := range stays {
		net := stay.TotalAmount.Mul(feeFactor).Round(2)
		item := &models.PayoutItem{
			StayID:       stay.ID,
			UserID:       stay.HostUserID,
			Amount:       net,
			Currency:     stay.Currency,
			Status:       enums.PayoutItemStatusPending,
			ScheduledFor: now,
		}
		if _, err := s.repo.CreatePayoutItem(ctx, item); err != nil {
			return fmt.Errorf("backfill payout item for stay %s: %w", stay.ID, err)
		}
	}
	return nil
}

// settleCurrency runs one batch for one currency. The batch row is created
// PROCESSING up front so a crashed sweep is visible.
func (s *HostSweep) settleCurrency(ctx context.Context, now time.Time, currency enums.Currency, items []models.PayoutItem) (Summary, error) {
	gross := decimal.Zero
	for _, item := range items {
		gross = gross.Add(item.Amount)
	}
	batch := &models.PayoutBatch{
		Currency:    currency,
		TotalAmount: gross,
		Status:      enums.PayoutBatchStatusProcessing,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return Summary{}, fmt.Errorf("create payout batch: %w", err)
	}
	logCtx := s.logg.WithBatchID(ctx, batch.ID.String())

	summary := Summary{BatchID: batch.ID.String(), TotalAmount: decimal.Zero}
	for _, item := range items {
		switch s.settleItem(logCtx, batch, item) {
		case groupPaid:
			summary.Processed++
			summary.TotalAmount = summary.TotalAmount.Add(item.Amount)
		case groupSkipped:
			summary.Skipped++
		case groupFailed:
			summary.Failed++
		}
	}

	status := enums.PayoutBatchStatusPaid
	if summary.Failed > 0 {
		status = enums.PayoutBatchStatusFailed
	}
	processedAt := s.now().UTC()
	if err := s.repo.UpdateBatch(ctx, batch.ID, map[string]any{
		"status":       status,
		"total_amount": summary.TotalAmount,
		"processed_at": processedAt,
	}); err != nil {
		return summary, fmt.Errorf("finalize payout batch: %w", err)
	}
	if s.metrics != nil && summary.TotalAmount.IsPositive() {
		s.metrics.ObserveSettled("host", string(currency), summary.TotalAmount)
	}
	return summary, nil
}

// settleItem pays one item. Skipped items stay PENDING for the next sweep;
// failed items record the reason and wait for operator review.
func (s *HostSweep) settleItem(ctx context.Context, batch *models.PayoutBatch, item models.PayoutItem) groupOutcome {
	account, err := s.repo.FindAccountByUser(ctx, item.UserID)
	if err != nil {
		s.logg.Error(ctx, "failed to look up host payout account", err)
		return groupFailed
	}
	if account == nil || !account.Status.IsSettleable() {
		return groupSkipped
	}

	result, err := s.providers.SendPayout(ctx, provider.Request{
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		Amount:            item.Amount,
		Currency:          item.Currency,
		IdempotencyKey:    fmt.Sprintf("%s:%s", batch.ID, item.StayID),
		Description:       "host stay payout",
	})
	if err != nil {
		s.logg.Error(s.logg.WithStayID(ctx, item.StayID.String()), "host settlement failed", err)
		reason := err.Error()
		if updateErr := s.repo.UpdatePayoutItem(ctx, item.ID, map[string]any{
			"status":          enums.PayoutItemStatusFailed,
			"payout_batch_id": batch.ID,
			"failure_reason":  reason,
		}); updateErr != nil {
			s.logg.Error(ctx, "failed to record payout item failure", updateErr)
		}
		return groupFailed
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).UpdatePayoutItem(ctx, item.ID, map[string]any{
			"status":          enums.PayoutItemStatusPaid,
			"payout_batch_id": batch.ID,
			"paid_at":         result.PaidAt,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "failed to mark payout item paid after settlement", err)
		return groupFailed
	}
	return groupPaid
}

func currenciesOf(items []models.PayoutItem) []enums.Currency {
	seen := map[enums.Currency]bool{}
	var out []enums.Currency
	for _, item := range items {
		if !seen[item.Currency] {
			seen[item.Currency] = true
			out = append(out, item.Currency)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func itemsIn(items []models.PayoutItem, currency enums.Currency) []models.PayoutItem {
	var out []models.PayoutItem
	for _, item := range items {
		if item.Currency == currency {
			out = append(out, item)
		}
	}
	return out
}
