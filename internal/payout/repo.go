package payout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roamnest/roamnest-backend/pkg/db"
	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Repository is the data access layer shared by both sweep processors:
// settleable commissions and payout accounts for the influencer side, stays,
// payout items and batches for the host side.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindSettleableCommissions(ctx context.Context, eventType enums.ReferralEventType, now time.Time, limit int) ([]models.Commission, error)
	FindSettleableByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error)
	MarkCommissionsPaid(ctx context.Context, ids []uuid.UUID, providerBatchID string, paidAt time.Time) (int64, error)

	FindAccountByUser(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error)
	FindAccountForInfluencer(ctx context.Context, influencerID uuid.UUID) (*models.PayoutAccount, error)

	FindStaysMissingPayoutItems(ctx context.Context, limit int) ([]models.Stay, error)
	CreatePayoutItem(ctx context.Context, item *models.PayoutItem) (bool, error)
	FindDuePayoutItems(ctx context.Context, now time.Time, limit int) ([]models.PayoutItem, error)
	UpdatePayoutItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error

	CreateBatch(ctx context.Context, batch *models.PayoutBatch) error
	UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]any) error
}

type repository struct {
	conn *gorm.DB
}

// NewRepository builds a gorm-backed payout repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{conn: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{conn: tx}
}

func (r *repository) FindSettleableCommissions(ctx context.Context, eventType enums.ReferralEventType, now time.Time, limit int) ([]models.Commission, error) {
	var commissions []models.Commission
	err := r.conn.WithContext(ctx).
		Where("event_type = ?", eventType).
		Where("status = ? OR (status = ? AND hold_until <= ?)",
			enums.CommissionStatusEligible, enums.CommissionStatusHold, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&commissions).Error
	return commissions, err
}

// FindSettleableByIDsForUpdate locks the rows of a group that are still
// settleable. Rows reversed between the fetch and the settlement drop out
// here, so the marked set and the reported amount stay in step.
func (r *repository) FindSettleableByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	err := db.ForUpdate(r.conn.WithContext(ctx)).
		Where("id IN ?", ids).
		Where("status IN ?", []enums.CommissionStatus{enums.CommissionStatusEligible, enums.CommissionStatusHold}).
		Find(&commissions).Error
	return commissions, err
}

// MarkCommissionsPaid flips a settled group to paid in one statement. The
// status guard keeps rows reversed mid-sweep out of the update.
func (r *repository) MarkCommissionsPaid(ctx context.Context, ids []uuid.UUID, providerBatchID string, paidAt time.Time) (int64, error) {
	result := r.conn.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id IN ?", ids).
		Where("status IN ?", []enums.CommissionStatus{enums.CommissionStatusEligible, enums.CommissionStatusHold}).
		Updates(map[string]any{
			"status":          enums.CommissionStatusPaid,
			"payout_batch_id": providerBatchID,
			"paid_at":         paidAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) FindAccountByUser(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	err := r.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountForInfluencer(ctx context.Context, influencerID uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	err := r.conn.WithContext(ctx).
		Joins("JOIN influencers ON influencers.user_id = payout_accounts.user_id").
		Where("influencers.id = ?", influencerID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// FindStaysMissingPayoutItems lists completed, paid stays without a payout
// item yet. The backfill runs on every sweep so late-completing stays are
// always picked up.
func (r *repository) FindStaysMissingPayoutItems(ctx context.Context, limit int) ([]models.Stay, error) {
	var stays []models.Stay
	err := r.conn.WithContext(ctx).
		Joins("LEFT JOIN payout_items ON payout_items.stay_id = stays.id").
		Where("stays.status = ? AND stays.payment_status = ?", enums.StayStatusCompleted, enums.StayPaymentStatusPaid).
		Where("payout_items.id IS NULL").
		Order("stays.check_out ASC").
		Limit(limit).
		Find(&stays).Error
	return stays, err
}

// CreatePayoutItem inserts the item or does nothing when its stay already
// has one, so concurrent backfills converge without raising a violation.
func (r *repository) CreatePayoutItem(ctx context.Context, item *models.PayoutItem) (bool, error) {
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindDuePayoutItems(ctx context.Context, now time.Time, limit int) ([]models.PayoutItem, error) {
	var items []models.PayoutItem
	err := r.conn.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", enums.PayoutItemStatusPending, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repository) UpdatePayoutItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.conn.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.PayoutBatch) error {
	return r.conn.WithContext(ctx).Create(batch).Error
}

func (r *repository) UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]any) error {
	return r.conn.WithContext(ctx).
		Model(&models.PayoutBatch{}).
		Where("id = ?", batchID).
		Updates(updates).Error
}
