package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// Commission is one payable credit owed to an influencer: a signup bonus, a
// per-night booking bonus, or a cash goal reward. Signup commissions are
// unique per (event_type, signup_user_id) and booking commissions per
// (event_type, stay_id); partial unique indexes live in the migration since
// goal-reward rows carry neither key.
type Commission struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InfluencerID   uuid.UUID               `gorm:"column:influencer_id;type:uuid;not null;index"`
	EventType      enums.ReferralEventType `gorm:"column:event_type;not null"`
	SignupUserID   *uuid.UUID              `gorm:"column:signup_user_id;type:uuid"`
	StayID         *uuid.UUID              `gorm:"column:stay_id;type:uuid;index"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       enums.Currency          `gorm:"column:currency;not null"`
	Status         enums.CommissionStatus  `gorm:"column:status;not null;default:'eligible';index"`
	HoldUntil      *time.Time              `gorm:"column:hold_until"`
	PayoutBatchID  *string                 `gorm:"column:payout_batch_id"`
	PaidAt         *time.Time              `gorm:"column:paid_at"`
	ReversalReason *string                 `gorm:"column:reversal_reason"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSettleable reports whether the commission may be swept into a payout
// batch at the given instant.
func (c Commission) IsSettleable(now time.Time) bool {
	switch c.Status {
	case enums.CommissionStatusEligible:
		return true
	case enums.CommissionStatusHold:
		return c.HoldUntil != nil && !c.HoldUntil.After(now)
	default:
		return false
	}
}
