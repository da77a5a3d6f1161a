/*
Package ledger is the transaction and balance consistency engine.

PURPOSE:
  Owns the only real invariants of the wallet: money is never created or
  destroyed (the signed sum of an account's transactions always equals its
  balance), duplicate submissions never double-charge, and concurrent
  writers never race past a funds check. Everything above this package is
  presentation glue; everything below is a key/value store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: an immutable record of one completed monetary event
  - Kind: deposit / withdraw / transfer_out / transfer_in, which implies
    the sign applied to the balance
  - Receipt: the success-shaped result of a processor call, distinguishing
    a fresh commit from an idempotent duplicate

DESIGN PRINCIPLES:
  1. Immutability: transactions are never mutated or deleted once appended
  2. Precision: integer minor units only; floats never enter the core
  3. Idempotency: at most one transaction per (account, idempotency key)
  4. Derivability: balance is always reconcilable against the log

SEE ALSO:
  - log.go: Append-only transaction log
  - balance.go: Authoritative balance
  - coordinator.go: Concurrency and visible-effect ordering
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string

// NewTransactionID generates a unique transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// NewIdempotencyKey generates a fresh idempotency token for callers that
// want retry-safety (one key per user intent, reused across retries).
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// =============================================================================
// TRANSACTION - One completed monetary event
// =============================================================================

type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdraw    Kind = "withdraw"
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
)

// Sign returns the direction the Kind applies to the balance.
func (k Kind) Sign() int64 {
	switch k {
	case KindWithdraw, KindTransferOut:
		return -1
	default:
		return 1
	}
}

// Status of a transaction. The engine's synchronous commit model only ever
// produces completed records; pending/failed states never reach the log.
type Status string

const StatusCompleted Status = "completed"

// Transaction is an immutable ledger entry. Amount is always positive;
// the sign applied to the balance is implied by Kind.
type Transaction struct {
	ID             TransactionID `json:"id"`
	AccountID      AccountID     `json:"account_id"`
	Kind           Kind          `json:"kind"`
	Amount         Amount        `json:"amount"`
	Currency       Currency      `json:"currency"`
	Counterparty   string        `json:"counterparty,omitempty"`
	Description    string        `json:"description,omitempty"`
	Category       string        `json:"category,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Status         Status        `json:"status"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

// SignedAmount is the delta this transaction applied to the balance.
func (t Transaction) SignedAmount() Amount {
	return Amount(int64(t.Amount) * t.Kind.Sign())
}

// SumSigned folds transactions into the balance they account for.
// The balance-sum invariant: SumSigned(log) == BalanceLedger.Balance.
func SumSigned(txs []Transaction) Amount {
	var total Amount
	for _, tx := range txs {
		total += tx.SignedAmount()
	}
	return total
}

// =============================================================================
// RECEIPT - Success-shaped processor outcome
// =============================================================================

type Outcome string

const (
	// OutcomeCompleted: a new transaction was committed.
	OutcomeCompleted Outcome = "completed"

	// OutcomeDuplicate: an idempotent retry matched an existing transaction.
	// Success-shaped, not an error - callers suppress duplicate
	// notifications and balance animations but otherwise treat it as done.
	OutcomeDuplicate Outcome = "duplicate"
)

// Receipt is returned by every successful processor call.
type Receipt struct {
	Outcome     Outcome
	Transaction Transaction
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies timestamps. Injectable so tests control time.
type Clock func() time.Time
