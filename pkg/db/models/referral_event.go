package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// ReferralEvent is the immutable, idempotent record that an influencer gets
// credit for one signup or one booking. The composite unique index on
// (event_type, subject_id, influencer_id) is the idempotency key for the
// whole pipeline: subject_id is the signup user for signup events and the
// stay for booking events. Rows are created once and never mutated.
type ReferralEvent struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType    enums.ReferralEventType `gorm:"column:event_type;not null;uniqueIndex:ux_referral_events_key"`
	SubjectID    uuid.UUID               `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:ux_referral_events_key"`
	InfluencerID uuid.UUID               `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex:ux_referral_events_key;index"`
	OccurredAt   time.Time               `gorm:"column:occurred_at;not null"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}

// SignupUserID returns the referred user for signup events.
func (e ReferralEvent) SignupUserID() uuid.UUID {
	if e.EventType == enums.ReferralEventSignup {
		return e.SubjectID
	}
	return uuid.Nil
}

// StayID returns the referred booking for booking events.
func (e ReferralEvent) StayID() uuid.UUID {
	if e.EventType == enums.ReferralEventBooking {
		return e.SubjectID
	}
	return uuid.Nil
}
