/*
commit.go - The shared atomic unit

PURPOSE:
  Both processors end the same way: apply the balance delta, then append
  the transaction. Committing the balance first means no reader can ever
  observe a transaction whose delta is missing from the balance. If the
  append fails after the balance moved, the delta is compensated before the
  failure surfaces, so the two stores never disagree.

  The whole sequence assumes the caller holds the per-account lock; the
  key/value store offers no multi-key transactions, so the lock IS the
  atomicity mechanism.
*/
package ledger

import (
	"context"
	"fmt"
)

// DefaultMaxAmount caps a single operation at 1,000,000.00 major units.
const DefaultMaxAmount Amount = 100_000_000

// validateAmount enforces the shared amount rules: strictly positive and
// within the configured maximum.
func validateAmount(amount, max Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	if max > 0 && amount > max {
		return fmt.Errorf("%w: amount %s exceeds maximum %s", ErrInvalidAmount, amount, max)
	}
	return nil
}

// commitTransaction applies tx's signed delta and appends tx as one unit.
// Caller holds the per-account lock.
func commitTransaction(ctx context.Context, balances *BalanceLedger, log *TransactionLog, tx Transaction) (Transaction, error) {
	if _, err := balances.Apply(ctx, tx.AccountID, tx.SignedAmount()); err != nil {
		return Transaction{}, err
	}

	recorded, err := log.Append(ctx, tx)
	if err != nil {
		// Roll the balance back before surfacing: a failed append must not
		// leave money applied without a transaction accounting for it.
		if _, compErr := balances.Apply(ctx, tx.AccountID, tx.SignedAmount().Neg()); compErr != nil {
			return Transaction{}, fmt.Errorf("append failed (%w) and compensation failed: %v", err, compErr)
		}
		return Transaction{}, err
	}
	return recorded, nil
}
