package enums

import "fmt"

// RedemptionStatus tracks the lifecycle of a wallet coupon redemption.
// reversed is the only true terminal state; redeemed can still be reversed
// when the stay is cancelled after payment.
type RedemptionStatus string

const (
	RedemptionStatusPending  RedemptionStatus = "pending"
	RedemptionStatusRedeemed RedemptionStatus = "redeemed"
	RedemptionStatusReversed RedemptionStatus = "reversed"
)

var validRedemptionStatuses = []RedemptionStatus{
	RedemptionStatusPending,
	RedemptionStatusRedeemed,
	RedemptionStatusReversed,
}

// String implements fmt.Stringer.
func (r RedemptionStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RedemptionStatus.
func (r RedemptionStatus) IsValid() bool {
	for _, candidate := range validRedemptionStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRedemptionStatus converts raw input into a RedemptionStatus.
func ParseRedemptionStatus(value string) (RedemptionStatus, error) {
	for _, candidate := range validRedemptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid redemption status %q", value)
}
