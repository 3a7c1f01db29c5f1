package enums

import "fmt"

// PayoutItemStatus tracks a host earning through batch settlement.
type PayoutItemStatus string

const (
	PayoutItemStatusPending    PayoutItemStatus = "PENDING"
	PayoutItemStatusQueued     PayoutItemStatus = "QUEUED"
	PayoutItemStatusProcessing PayoutItemStatus = "PROCESSING"
	PayoutItemStatusPaid       PayoutItemStatus = "PAID"
	PayoutItemStatusFailed     PayoutItemStatus = "FAILED"
	PayoutItemStatusOnHold     PayoutItemStatus = "ON_HOLD"
)

var validPayoutItemStatuses = []PayoutItemStatus{
	PayoutItemStatusPending,
	PayoutItemStatusQueued,
	PayoutItemStatusProcessing,
	PayoutItemStatusPaid,
	PayoutItemStatusFailed,
	PayoutItemStatusOnHold,
}

// String implements fmt.Stringer.
func (p PayoutItemStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutItemStatus.
func (p PayoutItemStatus) IsValid() bool {
	for _, candidate := range validPayoutItemStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutItemStatus converts raw input into a PayoutItemStatus.
func ParsePayoutItemStatus(value string) (PayoutItemStatus, error) {
	for _, candidate := range validPayoutItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout item status %q", value)
}
