/*
amount.go - Monetary amounts in integer minor units

PURPOSE:
  All authoritative money in the engine is an integer count of minor units
  (cents). Integer arithmetic guarantees that the sum of a ledger's
  transactions equals the stored balance exactly; floating accumulation over
  many small transactions would drift.

BOUNDARY CONVERSION:
  Callers speak decimal strings ("100.00"). ParseAmount converts at the
  boundary using shopspring/decimal, so no float ever enters the core.
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Integer minor units (e.g. cents)
// =============================================================================

// Amount is a quantity of money in minor units. Transaction amounts are
// always positive (sign is implied by Kind); balances and deltas are signed.
type Amount int64

// minorUnitExponent is the number of decimal places a major unit carries.
// All supported display currencies use two.
const minorUnitExponent = 2

// ParseAmount converts a decimal string like "100.00" to minor units.
// Fails with ErrInvalidAmount on non-numeric input or more precision than
// a minor unit can hold ("0.001").
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	minor := d.Shift(minorUnitExponent)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-minor-unit precision", ErrInvalidAmount, s)
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount as a decimal in major units ("1050" -> 10.50).
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(a)).Shift(-minorUnitExponent)
}

// String formats the amount in major units with full minor-unit precision.
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorUnitExponent)
}

func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }
func (a Amount) Neg() Amount      { return -a }

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is an ISO 4217 code. The engine stores every amount in the
// account's native currency; display conversion is a read-time concern.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// DefaultCurrency is assigned to accounts created at first use.
const DefaultCurrency = CurrencyUSD
