package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Goal is an admin-managed, read-mostly catalog entry for a multi-step
// influencer goal ("50 referred bookings" and the like).
type Goal struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string                  `gorm:"column:code;not null;uniqueIndex"`
	EventType      enums.ReferralEventType `gorm:"column:event_type;not null"`
	TargetCount    int                     `gorm:"column:target_count;not null"`
	RewardType     enums.GoalRewardType    `gorm:"column:reward_type;not null"`
	RewardValue    decimal.Decimal         `gorm:"column:reward_value;type:numeric(12,2);not null"`
	RewardCurrency enums.Currency          `gorm:"column:reward_currency;not null;default:'USD'"`
	IsActive       bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
