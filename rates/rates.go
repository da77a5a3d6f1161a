/*
Package rates defines the exchange-rate collaborator.

PURPOSE:
  Display-currency conversion is a read-time presentation concern: stored
  amounts never leave the account's native currency. The engine only needs
  a provider of rates; fetching/caching strategies live behind the
  interface.

FAIL-CLOSED:
  A provider that cannot supply rates returns an error and callers render
  native amounts only. There is no stale-rate fallback - a wrong number is
  worse than no number.
*/
package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartbank/wallet-engine/ledger"
)

// Rates is one snapshot of conversion rates from a base currency.
type Rates struct {
	Base      ledger.Currency
	Rates     map[ledger.Currency]decimal.Decimal
	Timestamp time.Time
}

// Provider supplies rate snapshots. Implementations fail closed.
type Provider interface {
	GetRates(ctx context.Context, base ledger.Currency) (Rates, error)
}

// Convert re-denominates a minor-unit amount for display. The result is a
// decimal in the target currency's major units, deliberately not an
// Amount: converted values are presentation-only and never re-enter the
// core.
func (r Rates) Convert(amount ledger.Amount, to ledger.Currency) (decimal.Decimal, error) {
	if to == r.Base {
		return amount.Decimal(), nil
	}
	rate, ok := r.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate from %s to %s", r.Base, to)
	}
	return amount.Decimal().Mul(rate), nil
}

// =============================================================================
// STATIC PROVIDER - Fixed table for demos and tests
// =============================================================================

type Static struct {
	Table map[ledger.Currency]map[ledger.Currency]decimal.Decimal
	Clock func() time.Time
}

// Demo returns a static provider with a fixed USD-based table. Good enough
// for local serving; real deployments swap in a live provider.
func Demo() Static {
	return Static{
		Table: map[ledger.Currency]map[ledger.Currency]decimal.Decimal{
			ledger.CurrencyUSD: {
				ledger.CurrencyEUR: decimal.RequireFromString("0.92"),
				ledger.CurrencyGBP: decimal.RequireFromString("0.79"),
			},
		},
	}
}

func (s Static) GetRates(ctx context.Context, base ledger.Currency) (Rates, error) {
	table, ok := s.Table[base]
	if !ok {
		return Rates{}, fmt.Errorf("no rates published for base %s", base)
	}
	now := time.Now
	if s.Clock != nil {
		now = s.Clock
	}
	return Rates{Base: base, Rates: table, Timestamp: now()}, nil
}
