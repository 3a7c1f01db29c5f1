package enums

import "fmt"

// PayoutProvider identifies the external settlement rail for a payout account.
type PayoutProvider string

const (
	PayoutProviderBank     PayoutProvider = "BANK"
	PayoutProviderStripe   PayoutProvider = "STRIPE"
	PayoutProviderPaypal   PayoutProvider = "PAYPAL"
	PayoutProviderPayoneer PayoutProvider = "PAYONEER"
)

var validPayoutProviders = []PayoutProvider{
	PayoutProviderBank,
	PayoutProviderStripe,
	PayoutProviderPaypal,
	PayoutProviderPayoneer,
}

// String implements fmt.Stringer.
func (p PayoutProvider) String() string {
	return string(p)
}

// IsValid reports whether the provider is recognized.
func (p PayoutProvider) IsValid() bool {
	for _, candidate := range validPayoutProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutProvider converts raw input into a PayoutProvider.
func ParsePayoutProvider(value string) (PayoutProvider, error) {
	for _, candidate := range validPayoutProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout provider %q", value)
}
