package referral

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roamnest/roamnest-backend/pkg/db"
	"github.com/roamnest/roamnest-backend/pkg/db/models"
	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Repository persists the referral event ledger, its commissions, and the
// influencer code directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindInfluencerByCode(ctx context.Context, code string) (*models.Influencer, error)
	FindInfluencerByID(ctx context.Context, influencerID uuid.UUID) (*models.Influencer, error)

	FindEventByKey(ctx context.Context, eventType enums.ReferralEventType, subjectID, influencerID uuid.UUID) (*models.ReferralEvent, error)
	FindSignupEventBySubject(ctx context.Context, signupUserID uuid.UUID) (*models.ReferralEvent, error)
	CreateEvent(ctx context.Context, event *models.ReferralEvent) (bool, error)

	CreateCommission(ctx context.Context, commission *models.Commission) (bool, error)
	FindCommissionByID(ctx context.Context, commissionID uuid.UUID) (*models.Commission, error)
	FindSignupCommissionForUpdate(ctx context.Context, signupUserID uuid.UUID) (*models.Commission, error)
	FindCommissionsByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]models.Commission, error)
	UpdateCommission(ctx context.Context, commissionID uuid.UUID, updates map[string]any) error
}

type repository struct {
	conn *gorm.DB
}

// NewRepository builds a gorm-backed referral repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{conn: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{conn: tx}
}

func (r *repository) FindInfluencerByCode(ctx context.Context, code string) (*models.Influencer, error) {
	var influencer models.Influencer
	err := r.conn.WithContext(ctx).
		Where("code = ?", code).
		First(&influencer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &influencer, nil
}

func (r *repository) FindInfluencerByID(ctx context.Context, influencerID uuid.UUID) (*models.Influencer, error) {
	var influencer models.Influencer
	err := r.conn.WithContext(ctx).
		Where("id = ?", influencerID).
		First(&influencer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &influencer, nil
}

func (r *repository) FindEventByKey(ctx context.Context, eventType enums.ReferralEventType, subjectID, influencerID uuid.UUID) (*models.ReferralEvent, error) {
	var event models.ReferralEvent
	err := r.conn.WithContext(ctx).
		Where("event_type = ? AND subject_id = ? AND influencer_id = ?", eventType, subjectID, influencerID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindSignupEventBySubject(ctx context.Context, signupUserID uuid.UUID) (*models.ReferralEvent, error) {
	var event models.ReferralEvent
	err := r.conn.WithContext(ctx).
		Where("event_type = ? AND subject_id = ?", enums.ReferralEventSignup, signupUserID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CreateEvent inserts the event or does nothing when its idempotency key is
// already taken. The conditional insert never raises a unique violation, so
// the surrounding transaction stays usable either way.
func (r *repository) CreateEvent(ctx context.Context, event *models.ReferralEvent) (bool, error) {
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreateCommission inserts the commission unless its partial unique index
// (signup user or stay) already holds a row.
func (r *repository) CreateCommission(ctx context.Context, commission *models.Commission) (bool, error) {
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(commission)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindCommissionByID(ctx context.Context, commissionID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	err := r.conn.WithContext(ctx).
		Where("id = ?", commissionID).
		First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

func (r *repository) FindSignupCommissionForUpdate(ctx context.Context, signupUserID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	err := db.ForUpdate(r.conn.WithContext(ctx)).
		Where("event_type = ? AND signup_user_id = ?", enums.ReferralEventSignup, signupUserID).
		First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

func (r *repository) FindCommissionsByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	err := db.ForUpdate(r.conn.WithContext(ctx)).
		Where("stay_id = ?", stayID).
		Find(&commissions).Error
	return commissions, err
}

func (r *repository) UpdateCommission(ctx context.Context, commissionID uuid.UUID, updates map[string]any) error {
	return r.conn.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ?", commissionID).
		Updates(updates).Error
}
