package referral

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
	"github.com/roamnest/roamnest-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type eventKey struct {
	eventType    enums.ReferralEventType
	subjectID    uuid.UUID
	influencerID uuid.UUID
}

type fakeReferralRepo struct {
	influencers []*models.Influencer
	events      map[eventKey]*models.ReferralEvent
	commissions map[uuid.UUID]*models.Commission
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{
		events:      map[eventKey]*models.ReferralEvent{},
		commissions: map[uuid.UUID]*models.Commission{},
	}
}

func (f *fakeReferralRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeReferralRepo) FindInfluencerByCode(ctx context.Context, code string) (*models.Influencer, error) {
	for _, inf := range f.influencers {
		if inf.Code == code {
			return inf, nil
		}
	}
	return nil, nil
}

func (f *fakeReferralRepo) FindInfluencerByID(ctx context.Context, influencerID uuid.UUID) (*models.Influencer, error) {
	for _, inf := range f.influencers {
		if inf.ID == influencerID {
			return inf, nil
		}
	}
	return nil, nil
}

func (f *fakeReferralRepo) FindEventByKey(ctx context.Context, eventType enums.ReferralEventType, subjectID, influencerID uuid.UUID) (*models.ReferralEvent, error) {
	return f.events[eventKey{eventType, subjectID, influencerID}], nil
}

func (f *fakeReferralRepo) FindSignupEventBySubject(ctx context.Context, signupUserID uuid.UUID) (*models.ReferralEvent, error) {
	for k, e := range f.events {
		if k.eventType == enums.ReferralEventSignup && k.subjectID == signupUserID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeReferralRepo) CreateEvent(ctx context.Context, event *models.ReferralEvent) (bool, error) {
	key := eventKey{event.EventType, event.SubjectID, event.InfluencerID}
	if _, exists := f.events[key]; exists {
		return false, nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events[key] = event
	return true, nil
}

func (f *fakeReferralRepo) CreateCommission(ctx context.Context, commission *models.Commission) (bool, error) {
	if commission.ID == uuid.Nil {
		commission.ID = uuid.New()
	}
	f.commissions[commission.ID] = commission
	return true, nil
}

func (f *fakeReferralRepo) FindCommissionByID(ctx context.Context, commissionID uuid.UUID) (*models.Commission, error) {
	return f.commissions[commissionID], nil
}

func (f *fakeReferralRepo) FindSignupCommissionForUpdate(ctx context.Context, signupUserID uuid.UUID) (*models.Commission, error) {
	for _, c := range f.commissions {
		if c.EventType == enums.ReferralEventSignup && c.SignupUserID != nil && *c.SignupUserID == signupUserID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeReferralRepo) FindCommissionsByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]models.Commission, error) {
	var out []models.Commission
	for _, c := range f.commissions {
		if c.StayID != nil && *c.StayID == stayID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeReferralRepo) UpdateCommission(ctx context.Context, commissionID uuid.UUID, updates map[string]any) error {
	c, ok := f.commissions[commissionID]
	if !ok {
		return nil
	}
	if v, ok := updates["amount"]; ok {
		c.Amount = v.(decimal.Decimal)
	}
	if v, ok := updates["status"]; ok {
		c.Status = v.(enums.CommissionStatus)
	}
	if v, ok := updates["reversal_reason"]; ok {
		reason := v.(string)
		c.ReversalReason = &reason
	}
	return nil
}

type fakeGoalEngine struct {
	calls int
}

func (f *fakeGoalEngine) HandleEvent(ctx context.Context, tx *gorm.DB, eventType enums.ReferralEventType, influencerID uuid.UUID) error {
	f.calls++
	return nil
}

func newReferralService(t *testing.T, repo *fakeReferralRepo, goals *fakeGoalEngine, holdWindow time.Duration) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Level: zerolog.Disabled}),
		DB:     fakeTxRunner{},
		Repo:   repo,
		Goals:  goals,
		Config: Config{
			SignupBonus:         decimal.RequireFromString("10.00"),
			SignupBonusUpgraded: decimal.RequireFromString("25.00"),
			BookingPerNight:     decimal.RequireFromString("2.00"),
			HoldWindow:          holdWindow,
		},
		Now: func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func singleCommission(t *testing.T, repo *fakeReferralRepo) *models.Commission {
	t.Helper()
	if len(repo.commissions) != 1 {
		t.Fatalf("expected exactly one commission, got %d", len(repo.commissions))
	}
	for _, c := range repo.commissions {
		return c
	}
	return nil
}

func TestRecordEventSignupCreatesCommission(t *testing.T) {
	repo := newFakeReferralRepo()
	goals := &fakeGoalEngine{}
	svc := newReferralService(t, repo, goals, 0)

	influencerID := uuid.New()
	userID := uuid.New()
	result, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: influencerID,
		SignupUserID: userID,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if !result.Created {
		t.Fatal("expected event to be created")
	}
	if result.Commission == nil {
		t.Fatal("expected a commission")
	}
	if got := result.Commission.Amount.StringFixed(2); got != "10.00" {
		t.Fatalf("expected signup bonus 10.00, got %s", got)
	}
	if result.Commission.Currency != enums.CurrencyUSD {
		t.Fatalf("signup bonus should be USD, got %s", result.Commission.Currency)
	}
	if result.Commission.Status != enums.CommissionStatusEligible {
		t.Fatalf("expected eligible, got %s", result.Commission.Status)
	}
	if goals.calls != 1 {
		t.Fatalf("expected one goal bump, got %d", goals.calls)
	}
}

func TestRecordEventDuplicateIsNoop(t *testing.T) {
	repo := newFakeReferralRepo()
	goals := &fakeGoalEngine{}
	svc := newReferralService(t, repo, goals, 0)

	params := RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: uuid.New(),
	}
	first, err := svc.RecordEvent(context.Background(), params)
	if err != nil {
		t.Fatalf("first RecordEvent: %v", err)
	}
	second, err := svc.RecordEvent(context.Background(), params)
	if err != nil {
		t.Fatalf("second RecordEvent: %v", err)
	}
	if second.Created {
		t.Fatal("replayed event must not be created")
	}
	if second.Event.ID != first.Event.ID {
		t.Fatal("expected the original event back")
	}
	if second.Commission != nil {
		t.Fatal("replayed event must not mint a commission")
	}
	if len(repo.commissions) != 1 {
		t.Fatalf("expected one commission total, got %d", len(repo.commissions))
	}
	if goals.calls != 1 {
		t.Fatalf("replayed event must not bump goals, calls=%d", goals.calls)
	}
}

func TestRecordEventBookingPerNightMath(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	result, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventBooking,
		InfluencerID: uuid.New(),
		StayID:       uuid.New(),
		Nights:       3,
		Currency:     enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if got := result.Commission.Amount.StringFixed(2); got != "6.00" {
		t.Fatalf("expected 3 nights at 2.00 = 6.00, got %s", got)
	}
}

func TestRecordEventBookingConvertsCurrency(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	result, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventBooking,
		InfluencerID: uuid.New(),
		StayID:       uuid.New(),
		Nights:       3,
		Currency:     enums.CurrencyEUR,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	// 6.00 USD at 1.08 USD/EUR
	if got := result.Commission.Amount.StringFixed(2); got != "5.56" {
		t.Fatalf("expected 5.56 EUR, got %s", got)
	}
	if result.Commission.Currency != enums.CurrencyEUR {
		t.Fatalf("expected EUR commission, got %s", result.Commission.Currency)
	}
}

func TestRecordEventHoldWindow(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 48*time.Hour)

	result, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if result.Commission.Status != enums.CommissionStatusHold {
		t.Fatalf("expected hold, got %s", result.Commission.Status)
	}
	want := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	if result.Commission.HoldUntil == nil || !result.Commission.HoldUntil.Equal(want) {
		t.Fatalf("expected hold_until %v, got %v", want, result.Commission.HoldUntil)
	}
}

func TestRecordEventSuppressesZeroAmount(t *testing.T) {
	repo := newFakeReferralRepo()
	goals := &fakeGoalEngine{}
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Level: zerolog.Disabled}),
		DB:     fakeTxRunner{},
		Repo:   repo,
		Goals:  goals,
		Config: Config{
			SignupBonus:     decimal.Zero,
			BookingPerNight: decimal.Zero,
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if !result.Created {
		t.Fatal("event itself should still be created")
	}
	if result.Commission != nil || len(repo.commissions) != 0 {
		t.Fatal("zero-value commissions must not be created")
	}
	if goals.calls != 1 {
		t.Fatal("goal progress still moves for zero-bonus events")
	}
}

func TestRecordEventValidation(t *testing.T) {
	svc := newReferralService(t, newFakeReferralRepo(), &fakeGoalEngine{}, 0)

	cases := []RecordEventParams{
		{EventType: "bogus", InfluencerID: uuid.New(), SignupUserID: uuid.New()},
		{EventType: enums.ReferralEventSignup, SignupUserID: uuid.New()},
		{EventType: enums.ReferralEventSignup, InfluencerID: uuid.New()},
		{EventType: enums.ReferralEventBooking, InfluencerID: uuid.New(), Nights: 2, Currency: enums.CurrencyUSD},
		{EventType: enums.ReferralEventBooking, InfluencerID: uuid.New(), StayID: uuid.New(), Nights: 0, Currency: enums.CurrencyUSD},
		{EventType: enums.ReferralEventBooking, InfluencerID: uuid.New(), StayID: uuid.New(), Nights: 2, Currency: "XXX"},
	}
	for i, params := range cases {
		if _, err := svc.RecordEvent(context.Background(), params); !errors.IsCode(err, errors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestLinkSignup(t *testing.T) {
	repo := newFakeReferralRepo()
	influencer := &models.Influencer{ID: uuid.New(), UserID: uuid.New(), Code: "SUNNY10", IsActive: true}
	repo.influencers = append(repo.influencers, influencer)
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	result, err := svc.LinkSignup(context.Background(), "SUNNY10", userID)
	if err != nil {
		t.Fatalf("LinkSignup: %v", err)
	}
	if !result.Created {
		t.Fatal("expected new signup event")
	}
	if result.Influencer.ID != influencer.ID {
		t.Fatal("influencer mismatch")
	}

	// same code again is idempotent
	again, err := svc.LinkSignup(context.Background(), "SUNNY10", userID)
	if err != nil {
		t.Fatalf("repeat LinkSignup: %v", err)
	}
	if again.Created {
		t.Fatal("repeat link must not create a second event")
	}
}

func TestLinkSignupInvalidCode(t *testing.T) {
	svc := newReferralService(t, newFakeReferralRepo(), &fakeGoalEngine{}, 0)

	_, err := svc.LinkSignup(context.Background(), "NOPE", uuid.New())
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLinkSignupInactiveCode(t *testing.T) {
	repo := newFakeReferralRepo()
	repo.influencers = append(repo.influencers, &models.Influencer{ID: uuid.New(), UserID: uuid.New(), Code: "OLD", IsActive: false})
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	_, err := svc.LinkSignup(context.Background(), "OLD", uuid.New())
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLinkSignupSelfReferral(t *testing.T) {
	repo := newFakeReferralRepo()
	influencer := &models.Influencer{ID: uuid.New(), UserID: uuid.New(), Code: "ME", IsActive: true}
	repo.influencers = append(repo.influencers, influencer)
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	_, err := svc.LinkSignup(context.Background(), "ME", influencer.UserID)
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLinkSignupConflictingInfluencer(t *testing.T) {
	repo := newFakeReferralRepo()
	first := &models.Influencer{ID: uuid.New(), UserID: uuid.New(), Code: "FIRST", IsActive: true}
	second := &models.Influencer{ID: uuid.New(), UserID: uuid.New(), Code: "SECOND", IsActive: true}
	repo.influencers = append(repo.influencers, first, second)
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	if _, err := svc.LinkSignup(context.Background(), "FIRST", userID); err != nil {
		t.Fatalf("LinkSignup: %v", err)
	}
	_, err := svc.LinkSignup(context.Background(), "SECOND", userID)
	if !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUpgradeSignupBonus(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: userID,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	if err := svc.UpgradeSignupBonusOnBooking(context.Background(), userID); err != nil {
		t.Fatalf("UpgradeSignupBonusOnBooking: %v", err)
	}
	c := singleCommission(t, repo)
	if got := c.Amount.StringFixed(2); got != "25.00" {
		t.Fatalf("expected upgraded amount 25.00, got %s", got)
	}

	// a second upgrade attempt is a no-op
	if err := svc.UpgradeSignupBonusOnBooking(context.Background(), userID); err != nil {
		t.Fatalf("repeat upgrade: %v", err)
	}
	if got := c.Amount.StringFixed(2); got != "25.00" {
		t.Fatalf("expected amount unchanged, got %s", got)
	}
}

func TestUpgradeSignupBonusSkipsPaid(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: userID,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	c := singleCommission(t, repo)
	c.Status = enums.CommissionStatusPaid

	if err := svc.UpgradeSignupBonusOnBooking(context.Background(), userID); err != nil {
		t.Fatalf("UpgradeSignupBonusOnBooking: %v", err)
	}
	if got := c.Amount.StringFixed(2); got != "10.00" {
		t.Fatalf("paid commission must not change, got %s", got)
	}
}

func TestDowngradeSignupBonus(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: userID,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := svc.UpgradeSignupBonusOnBooking(context.Background(), userID); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := svc.DowngradeSignupBonusOnBookingCancel(context.Background(), userID); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	c := singleCommission(t, repo)
	if got := c.Amount.StringFixed(2); got != "10.00" {
		t.Fatalf("expected base amount restored, got %s", got)
	}
}

func TestDowngradeSignupBonusSkipsPaid(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	userID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventSignup,
		InfluencerID: uuid.New(),
		SignupUserID: userID,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := svc.UpgradeSignupBonusOnBooking(context.Background(), userID); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	c := singleCommission(t, repo)
	c.Status = enums.CommissionStatusPaid

	if err := svc.DowngradeSignupBonusOnBookingCancel(context.Background(), userID); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	if got := c.Amount.StringFixed(2); got != "25.00" {
		t.Fatalf("paid commission must keep its amount, got %s", got)
	}
}

func TestReverseForStay(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	stayID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventBooking,
		InfluencerID: uuid.New(),
		StayID:       stayID,
		Nights:       2,
		Currency:     enums.CurrencyUSD,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	reversed, err := svc.ReverseForStay(context.Background(), stayID, "booking cancelled")
	if err != nil {
		t.Fatalf("ReverseForStay: %v", err)
	}
	if reversed != 1 {
		t.Fatalf("expected 1 reversal, got %d", reversed)
	}
	c := singleCommission(t, repo)
	if c.Status != enums.CommissionStatusReversed {
		t.Fatalf("expected reversed, got %s", c.Status)
	}
	if c.ReversalReason == nil || *c.ReversalReason != "booking cancelled" {
		t.Fatal("expected reversal reason recorded")
	}

	// repeating is a no-op
	reversed, err = svc.ReverseForStay(context.Background(), stayID, "booking cancelled")
	if err != nil {
		t.Fatalf("repeat ReverseForStay: %v", err)
	}
	if reversed != 0 {
		t.Fatalf("expected 0 reversals on repeat, got %d", reversed)
	}
}

func TestReverseForStaySkipsPaid(t *testing.T) {
	repo := newFakeReferralRepo()
	svc := newReferralService(t, repo, &fakeGoalEngine{}, 0)

	stayID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventParams{
		EventType:    enums.ReferralEventBooking,
		InfluencerID: uuid.New(),
		StayID:       stayID,
		Nights:       2,
		Currency:     enums.CurrencyUSD,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	c := singleCommission(t, repo)
	c.Status = enums.CommissionStatusPaid

	reversed, err := svc.ReverseForStay(context.Background(), stayID, "late cancellation")
	if err != nil {
		t.Fatalf("ReverseForStay: %v", err)
	}
	if reversed != 0 {
		t.Fatalf("paid commission must not reverse, got %d", reversed)
	}
	if c.Status != enums.CommissionStatusPaid {
		t.Fatalf("expected paid untouched, got %s", c.Status)
	}
}
