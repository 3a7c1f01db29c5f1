package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// PayoutItem is a host's net earning for one completed, paid stay. The unique
// stay_id constraint keeps the backfill idempotent under concurrent runs.
type PayoutItem struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StayID        uuid.UUID              `gorm:"column:stay_id;type:uuid;not null;uniqueIndex"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency         `gorm:"column:currency;not null"`
	Status        enums.PayoutItemStatus `gorm:"column:status;not null;default:'PENDING';index"`
	PayoutBatchID *uuid.UUID             `gorm:"column:payout_batch_id;type:uuid"`
	ScheduledFor  time.Time              `gorm:"column:scheduled_for;not null"`
	PaidAt        *time.Time             `gorm:"column:paid_at"`
	FailureReason *string                `gorm:"column:failure_reason"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
