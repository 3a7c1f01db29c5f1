package enums

// StayStatus mirrors the booking subsystem's stay lifecycle. The ledger only
// reads these values; it never writes them.
type StayStatus string

const (
	StayStatusPending   StayStatus = "pending"
	StayStatusConfirmed StayStatus = "confirmed"
	StayStatusCompleted StayStatus = "completed"
	StayStatusCancelled StayStatus = "cancelled"
)

// StayPaymentStatus mirrors the booking subsystem's payment state.
type StayPaymentStatus string

const (
	StayPaymentStatusUnpaid   StayPaymentStatus = "unpaid"
	StayPaymentStatusPaid     StayPaymentStatus = "paid"
	StayPaymentStatusRefunded StayPaymentStatus = "refunded"
)
