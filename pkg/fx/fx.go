package fx

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
)

// usdRates maps one unit of each supported currency to USD. The table is
// static: commission math needs stable, reproducible conversions, not a live
// feed. Updated by ops alongside releases.
var usdRates = map[enums.Currency]decimal.Decimal{
	enums.CurrencyUSD: decimal.NewFromInt(1),
	enums.CurrencyEUR: decimal.RequireFromString("1.08"),
	enums.CurrencyGBP: decimal.RequireFromString("1.27"),
	enums.CurrencyMXN: decimal.RequireFromString("0.058"),
	enums.CurrencyAUD: decimal.RequireFromString("0.66"),
	enums.CurrencyCAD: decimal.RequireFromString("0.73"),
	enums.CurrencyJPY: decimal.RequireFromString("0.0067"),
}

// Rate returns the multiplier that converts from into to.
func Rate(from, to enums.Currency) (decimal.Decimal, error) {
	fromUSD, ok := usdRates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("no fx rate for currency %q", from)
	}
	toUSD, ok := usdRates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no fx rate for currency %q", to)
	}
	return fromUSD.Div(toUSD), nil
}

// Convert converts amount from one currency to another, rounded to 2 decimal
// places.
func Convert(amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount.Round(2), nil
	}
	rate, err := Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), nil
}
