/*
idempotency.go - Retry detection

PURPOSE:
  Decides whether an operation carrying an idempotency key has already been
  applied. The existence of a transaction with the key IS the idempotency
  record - there is no separate table to drift out of sync.

ATOMICITY:
  A bare check-then-append has a race window. CheckAndReserve is only a
  lookup; the reservation becomes real when the caller appends inside the
  same per-account lock scope (coordinator.go). The log's own duplicate
  rejection is the final backstop.
*/
package ledger

import "context"

// IdempotencyResult reports whether a call is fresh or a replay.
type IdempotencyResult struct {
	Fresh bool
	// Existing is the previously committed transaction when Fresh is false.
	Existing *Transaction
}

// IdempotencyGuard answers "has this operation already been applied?".
type IdempotencyGuard struct {
	log *TransactionLog
}

func NewIdempotencyGuard(log *TransactionLog) *IdempotencyGuard {
	return &IdempotencyGuard{log: log}
}

// CheckAndReserve looks up (account, key) in the transaction log. An empty
// key means the caller opted out of dedup and every call is fresh. A hit
// returns the existing transaction unmodified: the original call succeeded,
// so the replay is success-shaped, not an error.
func (g *IdempotencyGuard) CheckAndReserve(ctx context.Context, id AccountID, key string) (IdempotencyResult, error) {
	if key == "" {
		return IdempotencyResult{Fresh: true}, nil
	}
	existing, err := g.log.FindByIdempotencyKey(ctx, id, key)
	if err != nil {
		return IdempotencyResult{}, err
	}
	if existing != nil {
		return IdempotencyResult{Fresh: false, Existing: existing}, nil
	}
	return IdempotencyResult{Fresh: true}, nil
}
