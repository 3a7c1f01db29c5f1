package payout

import (
	"github.com/shopspring/decimal"
)

// Summary is the operator-facing result of one sweep run. Counts are groups
// for the influencer sweep and items for the host sweep.
type Summary struct {
	BatchID     string
	Processed   int
	Failed      int
	Skipped     int
	TotalAmount decimal.Decimal
}
