package enums

import "fmt"

// CommissionStatus tracks the lifecycle of an influencer commission.
// paid is terminal; reversed is reachable from hold and eligible only.
type CommissionStatus string

const (
	CommissionStatusHold     CommissionStatus = "hold"
	CommissionStatusEligible CommissionStatus = "eligible"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusReversed CommissionStatus = "reversed"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusHold,
	CommissionStatusEligible,
	CommissionStatusPaid,
	CommissionStatusReversed,
}

// String implements fmt.Stringer.
func (c CommissionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionStatus.
func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from this status.
func (c CommissionStatus) IsTerminal() bool {
	return c == CommissionStatusPaid || c == CommissionStatusReversed
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
