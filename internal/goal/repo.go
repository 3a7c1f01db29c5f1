package goal

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

// Repository persists goals, per-influencer progress rows, and the cash
// commissions minted when a goal completes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListActiveByEventType(ctx context.Context, eventType enums.ReferralEventType) ([]models.Goal, error)
	FindGoalByCode(ctx context.Context, code string) (*models.Goal, error)

	FindProgressForUpdate(ctx context.Context, goalID, influencerID uuid.UUID) (*models.GoalProgress, error)
	CreateProgress(ctx context.Context, progress *models.GoalProgress) (bool, error)
	UpdateProgress(ctx context.Context, progressID uuid.UUID, updates map[string]any) error

	CreateRewardCommission(ctx context.Context, commission *models.Commission) error
}

type repository struct {
	conn *gorm.DB
}

// NewRepository builds a gorm-backed goal repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{conn: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{conn: tx}
}

func (r *repository) ListActiveByEventType(ctx context.Context, eventType enums.ReferralEventType) ([]models.Goal, error) {
	var goals []models.Goal
	err := r.conn.WithContext(ctx).
		Where("event_type = ? AND is_active = ?", eventType, true).
		Order("created_at ASC").
		Find(&goals).Error
	return goals, err
}

func (r *repository) FindGoalByCode(ctx context.Context, code string) (*models.Goal, error) {
	var goal models.Goal
	err := r.conn.WithContext(ctx).
		Where("code = ?", code).
		First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &goal, nil
}

func (r *repository) FindProgressForUpdate(ctx context.Context, goalID, influencerID uuid.UUID) (*models.GoalProgress, error) {
	var progress models.GoalProgress
	err := db.ForUpdate(r.conn.WithContext(ctx)).
		Where("goal_id = ? AND influencer_id = ?", goalID, influencerID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

// CreateProgress inserts the progress row or does nothing when a concurrent
// bump already created it; the conditional insert keeps the event
// transaction usable after losing that race.
func (r *repository) CreateProgress(ctx context.Context, progress *models.GoalProgress) (bool, error) {
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(progress)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateProgress(ctx context.Context, progressID uuid.UUID, updates map[string]any) error {
	return r.conn.WithContext(ctx).
		Model(&models.GoalProgress{}).
		Where("id = ?", progressID).
		Updates(updates).Error
}

func (r *repository) CreateRewardCommission(ctx context.Context, commission *models.Commission) error {
	return r.conn.WithContext(ctx).Create(commission).Error
}
