package models

import (
	"time"

	"github.com/google/uuid"
)

// GoalProgress counts newly created referral events toward one goal for one
// influencer. reward_granted_at is set exactly once; the null-check under a
// row lock is the one-time-reward invariant.
type GoalProgress struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GoalID             uuid.UUID  `gorm:"column:goal_id;type:uuid;not null;uniqueIndex:ux_goal_progress_key"`
	InfluencerID       uuid.UUID  `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex:ux_goal_progress_key"`
	ProgressCount      int        `gorm:"column:progress_count;not null;default:0"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
	RewardGrantedAt    *time.Time `gorm:"column:reward_granted_at"`
	RewardCommissionID *uuid.UUID `gorm:"column:reward_commission_id;type:uuid"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
