package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Stay is a read-only projection of the booking subsystem's stay row. The
// ledger reads status, payment status and totals to backfill host payout
// items; it never mutates stays.
type Stay struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	HostUserID    uuid.UUID               `gorm:"column:host_user_id;type:uuid;not null;index"`
	GuestUserID   uuid.UUID               `gorm:"column:guest_user_id;type:uuid;not null"`
	Status        enums.StayStatus        `gorm:"column:status;not null"`
	PaymentStatus enums.StayPaymentStatus `gorm:"column:payment_status;not null"`
	TotalAmount   decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency      enums.Currency          `gorm:"column:currency;not null"`
	Nights        int                     `gorm:"column:nights;not null"`
	CheckOut      time.Time               `gorm:"column:check_out;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at"`
	UpdatedAt     time.Time               `gorm:"column:updated_at"`
}
