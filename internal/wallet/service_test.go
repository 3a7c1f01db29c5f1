package wallet

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	wallets     map[uuid.UUID]*models.Wallet
	redemptions map[uuid.UUID]*models.Redemption

	pendingCount    int64
	createWalletErr error
	createRedemErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		wallets:     map[uuid.UUID]*models.Wallet{},
		redemptions: map[uuid.UUID]*models.Redemption{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindWalletByInfluencer(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.InfluencerID == influencerID {
			return w, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindWalletByInfluencerForUpdate(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error) {
	return f.FindWalletByInfluencer(ctx, influencerID)
}

func (f *fakeRepo) CreateWallet(ctx context.Context, wallet *models.Wallet) (bool, error) {
	if f.createWalletErr != nil {
		return false, f.createWalletErr
	}
	for _, existing := range f.wallets {
		if existing.InfluencerID == wallet.InfluencerID {
			return false, nil
		}
	}
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	f.wallets[wallet.ID] = wallet
	return true, nil
}

func (f *fakeRepo) UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	wallet, ok := f.wallets[walletID]
	if !ok {
		return nil
	}
	if v, ok := updates["total_used"]; ok {
		switch e := v.(type) {
		case int:
			wallet.TotalUsed = e
		case clause.Expr:
			// the service only issues "+ 1" and the floored "- 1"
			if strings.Contains(e.SQL, "- 1") {
				if wallet.TotalUsed > 0 {
					wallet.TotalUsed--
				}
			} else {
				wallet.TotalUsed++
			}
		}
	}
	return nil
}

func (f *fakeRepo) AddGrantedCoupons(ctx context.Context, walletID uuid.UUID, count int) error {
	if wallet, ok := f.wallets[walletID]; ok {
		wallet.TotalGranted += count
	}
	return nil
}

func (f *fakeRepo) CountPendingRedemptions(ctx context.Context, influencerID uuid.UUID) (int64, error) {
	if f.pendingCount > 0 {
		return f.pendingCount, nil
	}
	var count int64
	for _, r := range f.redemptions {
		if r.InfluencerID == influencerID && r.Status == enums.RedemptionStatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) FindRedemptionByStay(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error) {
	for _, r := range f.redemptions {
		if r.StayID == stayID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindRedemptionByStayForUpdate(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error) {
	return f.FindRedemptionByStay(ctx, stayID)
}

func (f *fakeRepo) CreateRedemption(ctx context.Context, redemption *models.Redemption) (bool, error) {
	if f.createRedemErr != nil {
		return false, f.createRedemErr
	}
	for _, existing := range f.redemptions {
		if existing.StayID == redemption.StayID {
			return false, nil
		}
	}
	if redemption.ID == uuid.Nil {
		redemption.ID = uuid.New()
	}
	f.redemptions[redemption.ID] = redemption
	return true, nil
}

func (f *fakeRepo) UpdateRedemption(ctx context.Context, redemptionID uuid.UUID, updates map[string]any) error {
	redemption, ok := f.redemptions[redemptionID]
	if !ok {
		return nil
	}
	if v, ok := updates["status"]; ok {
		redemption.Status = v.(enums.RedemptionStatus)
	}
	if v, ok := updates["discount_amount"]; ok {
		redemption.DiscountAmount = v.(decimal.Decimal)
	}
	if v, ok := updates["currency"]; ok {
		redemption.Currency = v.(enums.Currency)
	}
	if v, ok := updates["redeemed_at"]; ok {
		t := v.(time.Time)
		redemption.RedeemedAt = &t
	}
	if v, ok := updates["reversed_at"]; ok {
		t := v.(time.Time)
		redemption.ReversedAt = &t
	}
	return nil
}

func (f *fakeRepo) FindStalePendingRedemptions(ctx context.Context, cutoff time.Time) ([]models.Redemption, error) {
	var out []models.Redemption
	for _, r := range f.redemptions {
		if r.Status == enums.RedemptionStatusPending && r.ReservedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Level: zerolog.Disabled}),
		DB:     fakeTxRunner{},
		Repo:   repo,
		Config: Config{
			DiscountPct:    10,
			DiscountCapUSD: decimal.RequireFromString("30.00"),
		},
		Now: func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedWallet(repo *fakeRepo, influencerID uuid.UUID, granted, used int) *models.Wallet {
	wallet := &models.Wallet{
		ID:           uuid.New(),
		InfluencerID: influencerID,
		TotalGranted: granted,
		TotalUsed:    used,
	}
	repo.wallets[wallet.ID] = wallet
	return wallet
}

func TestAvailableSubtractsPendingReservations(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	seedWallet(repo, influencerID, 5, 2)
	repo.pendingCount = 2
	svc := newTestService(t, repo)

	available, err := svc.Available(context.Background(), influencerID)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if available != 1 {
		t.Fatalf("expected 1 available, got %d", available)
	}
}

func TestAvailableNoWallet(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	available, err := svc.Available(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected 0 available for missing wallet, got %d", available)
	}
}

func TestPlanCouponTenPercent(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	plan, err := svc.PlanCoupon(context.Background(), influencerID, decimal.RequireFromString("200.00"), enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("PlanCoupon: %v", err)
	}
	if !plan.Apply {
		t.Fatal("expected plan to apply")
	}
	if got := plan.DiscountAmount.StringFixed(2); got != "20.00" {
		t.Fatalf("expected discount 20.00, got %s", got)
	}
}

func TestPlanCouponCapped(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	plan, err := svc.PlanCoupon(context.Background(), influencerID, decimal.RequireFromString("1000.00"), enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("PlanCoupon: %v", err)
	}
	if got := plan.DiscountAmount.StringFixed(2); got != "30.00" {
		t.Fatalf("expected discount capped at 30.00, got %s", got)
	}
}

func TestPlanCouponNoCapacity(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	seedWallet(repo, influencerID, 2, 2)
	svc := newTestService(t, repo)

	plan, err := svc.PlanCoupon(context.Background(), influencerID, decimal.RequireFromString("200.00"), enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("PlanCoupon: %v", err)
	}
	if plan.Apply {
		t.Fatal("expected plan not to apply with exhausted wallet")
	}
}

func TestPlanCouponRejectsUnknownCurrency(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	_, err := svc.PlanCoupon(context.Background(), uuid.New(), decimal.RequireFromString("200.00"), enums.Currency("XXX"))
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReserveCreatesPendingRedemption(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	stayID := uuid.New()
	plan := CouponPlan{
		Apply:          true,
		InfluencerID:   influencerID,
		WalletID:       wallet.ID,
		DiscountAmount: decimal.RequireFromString("20.00"),
		Currency:       enums.CurrencyUSD,
	}
	redemption, err := svc.Reserve(context.Background(), plan, stayID, uuid.New())
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusPending {
		t.Fatalf("expected pending status, got %s", redemption.Status)
	}
	if redemption.StayID != stayID {
		t.Fatal("stay id mismatch")
	}
}

func TestReserveIdempotentPerStay(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	stayID := uuid.New()
	plan := CouponPlan{
		Apply:          true,
		InfluencerID:   influencerID,
		WalletID:       wallet.ID,
		DiscountAmount: decimal.RequireFromString("20.00"),
		Currency:       enums.CurrencyUSD,
	}
	first, err := svc.Reserve(context.Background(), plan, stayID, uuid.New())
	if err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	plan.DiscountAmount = decimal.RequireFromString("25.00")
	second, err := svc.Reserve(context.Background(), plan, stayID, uuid.New())
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected retries to converge on one redemption")
	}
	if got := second.DiscountAmount.StringFixed(2); got != "25.00" {
		t.Fatalf("expected refreshed discount 25.00, got %s", got)
	}
	if len(repo.redemptions) != 1 {
		t.Fatalf("expected one redemption row, got %d", len(repo.redemptions))
	}
}

func TestReserveRejectsNonApplyPlan(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	_, err := svc.Reserve(context.Background(), CouponPlan{}, uuid.New(), uuid.New())
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFinalizeConsumesCoupon(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	stayID := uuid.New()
	plan := CouponPlan{
		Apply: true, InfluencerID: influencerID, WalletID: wallet.ID,
		DiscountAmount: decimal.RequireFromString("20.00"), Currency: enums.CurrencyUSD,
	}
	redemption, err := svc.Reserve(context.Background(), plan, stayID, uuid.New())
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := svc.Finalize(context.Background(), stayID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", redemption.Status)
	}
	if wallet.TotalUsed != 1 {
		t.Fatalf("expected total_used 1, got %d", wallet.TotalUsed)
	}

	// second call changes nothing
	if err := svc.Finalize(context.Background(), stayID); err != nil {
		t.Fatalf("repeat Finalize: %v", err)
	}
	if wallet.TotalUsed != 1 {
		t.Fatalf("expected total_used still 1, got %d", wallet.TotalUsed)
	}
}

func TestFinalizeWithoutReservationIsNoop(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	if err := svc.Finalize(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestReverseAfterFinalizeRestoresCoupon(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	stayID := uuid.New()
	plan := CouponPlan{
		Apply: true, InfluencerID: influencerID, WalletID: wallet.ID,
		DiscountAmount: decimal.RequireFromString("20.00"), Currency: enums.CurrencyUSD,
	}
	redemption, err := svc.Reserve(context.Background(), plan, stayID, uuid.New())
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.Finalize(context.Background(), stayID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := svc.Reverse(context.Background(), stayID); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusReversed {
		t.Fatalf("expected reversed, got %s", redemption.Status)
	}
	if wallet.TotalUsed != 0 {
		t.Fatalf("expected total_used back to 0, got %d", wallet.TotalUsed)
	}

	// a repeat reversal does not decrement again
	if err := svc.Reverse(context.Background(), stayID); err != nil {
		t.Fatalf("repeat Reverse: %v", err)
	}
	if wallet.TotalUsed != 0 {
		t.Fatalf("expected total_used still 0, got %d", wallet.TotalUsed)
	}
}

func TestReverseBeforeFinalizePreventsConsumption(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	stayID := uuid.New()
	plan := CouponPlan{
		Apply: true, InfluencerID: influencerID, WalletID: wallet.ID,
		DiscountAmount: decimal.RequireFromString("20.00"), Currency: enums.CurrencyUSD,
	}
	if _, err := svc.Reserve(context.Background(), plan, stayID, uuid.New()); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := svc.Reverse(context.Background(), stayID); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if err := svc.Finalize(context.Background(), stayID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if wallet.TotalUsed != 0 {
		t.Fatalf("reversed reservation must not be consumed, total_used=%d", wallet.TotalUsed)
	}
}

func TestGrantCouponsCreatesWallet(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	influencerID := uuid.New()
	if err := svc.GrantCoupons(context.Background(), nil, influencerID, 3); err != nil {
		t.Fatalf("GrantCoupons: %v", err)
	}
	wallet, _ := repo.FindWalletByInfluencer(context.Background(), influencerID)
	if wallet == nil || wallet.TotalGranted != 3 {
		t.Fatalf("expected wallet with 3 granted, got %+v", wallet)
	}

	if err := svc.GrantCoupons(context.Background(), nil, influencerID, 2); err != nil {
		t.Fatalf("second GrantCoupons: %v", err)
	}
	if wallet.TotalGranted != 5 {
		t.Fatalf("expected 5 granted, got %d", wallet.TotalGranted)
	}
}

func TestGrantCouponsRejectsNonPositiveCount(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	err := svc.GrantCoupons(context.Background(), nil, uuid.New(), 0)
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExpireStalePendingReversesOldReservations(t *testing.T) {
	repo := newFakeRepo()
	influencerID := uuid.New()
	wallet := seedWallet(repo, influencerID, 3, 0)
	svc := newTestService(t, repo)

	old := &models.Redemption{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		InfluencerID: influencerID,
		UserID:       uuid.New(),
		StayID:       uuid.New(),
		Status:       enums.RedemptionStatusPending,
		ReservedAt:   time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	fresh := &models.Redemption{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		InfluencerID: influencerID,
		UserID:       uuid.New(),
		StayID:       uuid.New(),
		Status:       enums.RedemptionStatusPending,
		ReservedAt:   time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
	}
	repo.redemptions[old.ID] = old
	repo.redemptions[fresh.ID] = fresh

	expired, err := svc.ExpireStalePending(context.Background(), 72*time.Hour)
	if err != nil {
		t.Fatalf("ExpireStalePending: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	if old.Status != enums.RedemptionStatusReversed {
		t.Fatalf("expected old reservation reversed, got %s", old.Status)
	}
	if fresh.Status != enums.RedemptionStatusPending {
		t.Fatalf("expected fresh reservation untouched, got %s", fresh.Status)
	}
}
