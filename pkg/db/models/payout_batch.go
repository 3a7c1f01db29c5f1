package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// PayoutBatch groups host payout items settled in one sweep for one currency.
// Its status is a run summary, never a rollback signal.
type PayoutBatch struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Currency        enums.Currency          `gorm:"column:currency;not null"`
	TotalAmount     decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status          enums.PayoutBatchStatus `gorm:"column:status;not null;default:'PENDING'"`
	ProviderBatchID *string                 `gorm:"column:provider_batch_id"`
	ProcessedAt     *time.Time              `gorm:"column:processed_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
