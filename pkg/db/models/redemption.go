package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Redemption records one wallet coupon applied to one booking. The unique
// stay_id constraint guarantees at most one redemption per booking even when
// the reserve call is retried.
type Redemption struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID       uuid.UUID              `gorm:"column:wallet_id;type:uuid;not null;index"`
	InfluencerID   uuid.UUID              `gorm:"column:influencer_id;type:uuid;not null;index"`
	UserID         uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	StayID         uuid.UUID              `gorm:"column:stay_id;type:uuid;not null;uniqueIndex"`
	Status         enums.RedemptionStatus `gorm:"column:status;not null;default:'pending'"`
	DiscountAmount decimal.Decimal        `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Currency       enums.Currency         `gorm:"column:currency;not null"`
	ReservedAt     time.Time              `gorm:"column:reserved_at;not null"`
	RedeemedAt     *time.Time             `gorm:"column:redeemed_at"`
	ReversedAt     *time.Time             `gorm:"column:reversed_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
