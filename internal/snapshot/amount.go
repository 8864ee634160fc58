package snapshot

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// AmountToMinor converts a decimal amount string (e.g. "12500.50") to
// the minor units of the given ISO currency code, rounding half away
// from zero on sub-minor precision.
func AmountToMinor(amount, currency string) (int64, error) {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return 0, fmt.Errorf("unknown currency %q", currency)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return d.Shift(int32(cur.Fraction)).Round(0).IntPart(), nil
}
