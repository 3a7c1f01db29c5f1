package enums

import "fmt"

// ReferralEventType identifies what kind of referred activity an event records.
type ReferralEventType string

const (
	ReferralEventSignup  ReferralEventType = "signup"
	ReferralEventBooking ReferralEventType = "booking"
)

var validReferralEventTypes = []ReferralEventType{
	ReferralEventSignup,
	ReferralEventBooking,
}

// String implements fmt.Stringer.
func (r ReferralEventType) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r ReferralEventType) IsValid() bool {
	for _, candidate := range validReferralEventTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferralEventType converts raw input into a ReferralEventType.
func ParseReferralEventType(value string) (ReferralEventType, error) {
	for _, candidate := range validReferralEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referral event type %q", value)
}
