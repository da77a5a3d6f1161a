/*
balance.go - Authoritative per-account balance

PURPOSE:
  BalanceLedger owns the single scalar that "is" an account's money.
  Apply is the only mutator and is invoked exactly once per committed
  transaction, inside the same atomic unit as the log append. All
  arithmetic is integer minor units, so the balance-sum invariant
  (sum of signed transactions == balance) holds exactly.

CONCURRENCY:
  Apply is read-then-write and is NOT self-serializing. Callers must hold
  the per-account lock (see coordinator.go) across the whole atomic unit.
  Reads take no lock; they observe whatever the last committed unit wrote.
*/
package ledger

import (
	"context"

	"github.com/smartbank/wallet-engine/kv"
)

// BalanceLedger applies signed deltas to account balances.
type BalanceLedger struct {
	codec codec
}

func NewBalanceLedger(store kv.Store) *BalanceLedger {
	return &BalanceLedger{codec: codec{store: store}}
}

// Balance returns the committed balance in minor units. Accounts with no
// persisted state have a zero balance.
func (b *BalanceLedger) Balance(ctx context.Context, id AccountID) (Amount, error) {
	return b.codec.readBalance(ctx, id)
}

// Apply adds a signed delta and returns the new balance. A delta that
// would drive the balance negative fails with InsufficientFundsError and
// leaves the stored value untouched.
func (b *BalanceLedger) Apply(ctx context.Context, id AccountID, delta Amount) (Amount, error) {
	current, err := b.codec.readBalance(ctx, id)
	if err != nil {
		return 0, err
	}

	next := current + delta
	if next.IsNegative() {
		return 0, &InsufficientFundsError{
			AccountID: id,
			Available: current,
			Requested: delta.Neg(),
		}
	}

	if err := b.codec.writeBalance(ctx, id, next); err != nil {
		return 0, err
	}
	return next, nil
}
