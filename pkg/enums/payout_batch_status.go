package enums

import "fmt"

// PayoutBatchStatus summarizes a settlement batch. The batch status is a
// summary only: items that settled individually stay PAID even when the
// batch finishes FAILED.
type PayoutBatchStatus string

const (
	PayoutBatchStatusPending    PayoutBatchStatus = "PENDING"
	PayoutBatchStatusProcessing PayoutBatchStatus = "PROCESSING"
	PayoutBatchStatusPaid       PayoutBatchStatus = "PAID"
	PayoutBatchStatusFailed     PayoutBatchStatus = "FAILED"
)

var validPayoutBatchStatuses = []PayoutBatchStatus{
	PayoutBatchStatusPending,
	PayoutBatchStatusProcessing,
	PayoutBatchStatusPaid,
	PayoutBatchStatusFailed,
}

// String implements fmt.Stringer.
func (p PayoutBatchStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutBatchStatus.
func (p PayoutBatchStatus) IsValid() bool {
	for _, candidate := range validPayoutBatchStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutBatchStatus converts raw input into a PayoutBatchStatus.
func ParsePayoutBatchStatus(value string) (PayoutBatchStatus, error) {
	for _, candidate := range validPayoutBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout batch status %q", value)
}
