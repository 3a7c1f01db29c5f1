package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a per-influencer coupon balance. Availability is never stored;
// it is computed on read as total_granted - total_used - pending redemptions.
type Wallet struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InfluencerID uuid.UUID `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex"`
	TotalGranted int       `gorm:"column:total_granted;not null;default:0"`
	TotalUsed    int       `gorm:"column:total_used;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
