package enums

import "fmt"

// PayoutAccountStatus tracks onboarding of a payee's banking details.
// Only READY and VERIFIED accounts are settled against.
type PayoutAccountStatus string

const (
	PayoutAccountStatusIncomplete PayoutAccountStatus = "INCOMPLETE"
	PayoutAccountStatusPending    PayoutAccountStatus = "PENDING"
	PayoutAccountStatusReady      PayoutAccountStatus = "READY"
	PayoutAccountStatusVerified   PayoutAccountStatus = "VERIFIED"
)

var validPayoutAccountStatuses = []PayoutAccountStatus{
	PayoutAccountStatusIncomplete,
	PayoutAccountStatusPending,
	PayoutAccountStatusReady,
	PayoutAccountStatusVerified,
}

// String implements fmt.Stringer.
func (p PayoutAccountStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutAccountStatus.
func (p PayoutAccountStatus) IsValid() bool {
	for _, candidate := range validPayoutAccountStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSettleable reports whether the account may receive payouts.
func (p PayoutAccountStatus) IsSettleable() bool {
	return p == PayoutAccountStatusReady || p == PayoutAccountStatusVerified
}

// ParsePayoutAccountStatus converts raw input into a PayoutAccountStatus.
func ParsePayoutAccountStatus(value string) (PayoutAccountStatus, error) {
	for _, candidate := range validPayoutAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout account status %q", value)
}
