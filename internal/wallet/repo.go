package wallet

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

// Repository manages persistence for wallets and redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindWalletByInfluencer(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error)
	FindWalletByInfluencerForUpdate(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) (bool, error)
	UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error
	AddGrantedCoupons(ctx context.Context, walletID uuid.UUID, count int) error

	CountPendingRedemptions(ctx context.Context, influencerID uuid.UUID) (int64, error)
	FindRedemptionByStay(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error)
	FindRedemptionByStayForUpdate(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error)
	CreateRedemption(ctx context.Context, redemption *models.Redemption) (bool, error)
	UpdateRedemption(ctx context.Context, redemptionID uuid.UUID, updates map[string]any) error
	FindStalePendingRedemptions(ctx context.Context, cutoff time.Time) ([]models.Redemption, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWalletByInfluencer(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("influencer_id = ?", influencerID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByInfluencerForUpdate(ctx context.Context, influencerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("influencer_id = ?", influencerID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// CreateWallet inserts the wallet or does nothing when the influencer
// already has one; the conditional insert keeps the caller's transaction
// usable after a lost create race.
func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(wallet)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

// AddGrantedCoupons bumps total_granted atomically in SQL, never in app memory.
func (r *repository) AddGrantedCoupons(ctx context.Context, walletID uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("total_granted", gorm.Expr("total_granted + ?", count)).Error
}

func (r *repository) CountPendingRedemptions(ctx context.Context, influencerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Redemption{}).
		Where("influencer_id = ? AND status = ?", influencerID, enums.RedemptionStatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) FindRedemptionByStay(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error) {
	var redemption models.Redemption
	err := r.db.WithContext(ctx).
		Where("stay_id = ?", stayID).
		First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) FindRedemptionByStayForUpdate(ctx context.Context, stayID uuid.UUID) (*models.Redemption, error) {
	var redemption models.Redemption
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("stay_id = ?", stayID).
		First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// CreateRedemption inserts the reservation or does nothing when the stay
// already holds one.
func (r *repository) CreateRedemption(ctx context.Context, redemption *models.Redemption) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(redemption)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateRedemption(ctx context.Context, redemptionID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Redemption{}).
		Where("id = ?", redemptionID).
		Updates(updates).Error
}

func (r *repository) FindStalePendingRedemptions(ctx context.Context, cutoff time.Time) ([]models.Redemption, error) {
	var redemptions []models.Redemption
	err := r.db.WithContext(ctx).
		Where("status = ? AND reserved_at < ?", enums.RedemptionStatusPending, cutoff).
		Order("reserved_at ASC").
		Find(&redemptions).Error
	if err != nil {
		return nil, err
	}
	return redemptions, nil
}
