package enums

import "fmt"

// GoalRewardType distinguishes wallet coupon grants from cash commissions.
type GoalRewardType string

const (
	GoalRewardCouponGrant GoalRewardType = "coupon_grant"
	GoalRewardCash        GoalRewardType = "cash"
)

var validGoalRewardTypes = []GoalRewardType{
	GoalRewardCouponGrant,
	GoalRewardCash,
}

// String implements fmt.Stringer.
func (g GoalRewardType) String() string {
	return string(g)
}

// IsValid reports whether the value is known.
func (g GoalRewardType) IsValid() bool {
	for _, candidate := range validGoalRewardTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGoalRewardType converts raw input into a GoalRewardType.
func ParseGoalRewardType(value string) (GoalRewardType, error) {
	for _, candidate := range validGoalRewardTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid goal reward type %q", value)
}
