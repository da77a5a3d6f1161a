/*
coordinator.go - Concurrency, rollback, and visible-effect ordering

PURPOSE:
  The MutationCoordinator makes the processors safe under concurrent and
  rapid-fire invocation. It serializes writers per account (unrelated
  accounts proceed fully in parallel), tracks in-flight mutations so an
  optimistic UI has a well-defined value to show and to roll back to, and
  defines the order in which a commit becomes visible.

LOCKING:
  One lock per account, acquired for the whole atomic unit (idempotency
  lookup + balance delta + log append). Acquisition is context-aware: a
  caller whose deadline expires while waiting gets ErrConcurrencyConflict
  and may retry the whole operation from scratch. Two concurrent transfers
  can therefore never both pass the funds check against the same
  pre-operation balance - the second observes the first's committed effect.

  The system this engine models used a single process-wide lock flag
  (every account serialized against every other); the keyed lock replaces
  it without changing the per-account contract.

VISIBLE-EFFECT ORDERING:
  On success, cached views are invalidated balance-first, history-second.
  A reader must never observe a new transaction without the balance that
  accounts for it; the reverse order is never acceptable.

CANCELLATION:
  Once an operation holds the lock it runs to completion or fails
  explicitly. Caller cancellation can fail a storage write mid-unit, but
  the commit helper compensates, so a commit that appended its transaction
  is never rolled back and a failed one never leaves partial state.
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Invalidator receives cache-invalidation signals for derived views.
// The coordinator always calls InvalidateBalance before
// InvalidateTransactions; implementations must preserve that ordering.
type Invalidator interface {
	InvalidateBalance(id AccountID)
	InvalidateTransactions(id AccountID)
}

// EventPublisher receives committed-transaction events. Publishing is
// best-effort: a slow or absent subscriber never fails a commit.
type EventPublisher interface {
	Publish(topic string, data []byte) error
}

// TopicTransactionCommitted carries the JSON of each committed Transaction.
const TopicTransactionCommitted = "transactions.committed"

// =============================================================================
// PENDING MUTATIONS - In-memory only, never persisted
// =============================================================================

// PendingMutation is one in-flight optimistic update.
type PendingMutation struct {
	MutationID    string
	AccountID     AccountID
	ExpectedDelta Amount
	PriorBalance  Amount
}

type pendingSet struct {
	mu        sync.Mutex
	byAccount map[AccountID][]PendingMutation
}

func (p *pendingSet) add(m PendingMutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byAccount[m.AccountID] = append(p.byAccount[m.AccountID], m)
}

func (p *pendingSet) remove(m PendingMutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.byAccount[m.AccountID]
	for i := range list {
		if list[i].MutationID == m.MutationID {
			p.byAccount[m.AccountID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(p.byAccount[m.AccountID]) == 0 {
		delete(p.byAccount, m.AccountID)
	}
}

func (p *pendingSet) deltaFor(id AccountID) Amount {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total Amount
	for _, m := range p.byAccount[id] {
		total += m.ExpectedDelta
	}
	return total
}

// =============================================================================
// PER-ACCOUNT LOCKS
// =============================================================================

type accountLocks struct {
	mu    sync.Mutex
	gates map[AccountID]chan struct{}
}

func (l *accountLocks) gate(id AccountID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[id]
	if !ok {
		g = make(chan struct{}, 1)
		l.gates[id] = g
	}
	return g
}

// acquire blocks until the account's lock is free or ctx is done.
func (l *accountLocks) acquire(ctx context.Context, id AccountID) (release func(), err error) {
	g := l.gate(id)
	select {
	case g <- struct{}{}:
		return func() { <-g }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: account %s", ErrConcurrencyConflict, id)
	}
}

// =============================================================================
// MUTATION COORDINATOR
// =============================================================================

// MutationCoordinator is the write-path entry point and the only safe way
// to invoke the processors concurrently.
type MutationCoordinator struct {
	accounts  *Accounts
	balances  *BalanceLedger
	log       *TransactionLog
	transfers *TransferProcessor
	wallet    *WalletOperationProcessor

	locks       accountLocks
	pending     pendingSet
	invalidator Invalidator
	events      EventPublisher
	lockTimeout time.Duration
}

// DefaultLockTimeout bounds how long a writer waits for a busy account
// when the caller's context carries no deadline of its own.
const DefaultLockTimeout = 5 * time.Second

func NewMutationCoordinator(accounts *Accounts, balances *BalanceLedger, log *TransactionLog, transfers *TransferProcessor, wallet *WalletOperationProcessor) *MutationCoordinator {
	return &MutationCoordinator{
		accounts:    accounts,
		balances:    balances,
		log:         log,
		transfers:   transfers,
		wallet:      wallet,
		locks:       accountLocks{gates: make(map[AccountID]chan struct{})},
		pending:     pendingSet{byAccount: make(map[AccountID][]PendingMutation)},
		lockTimeout: DefaultLockTimeout,
	}
}

// WithInvalidator registers the derived-view invalidation hook.
func (c *MutationCoordinator) WithInvalidator(inv Invalidator) *MutationCoordinator {
	c.invalidator = inv
	return c
}

// WithEventPublisher registers the committed-transaction event sink.
func (c *MutationCoordinator) WithEventPublisher(pub EventPublisher) *MutationCoordinator {
	c.events = pub
	return c
}

// WithLockTimeout overrides the default lock-wait bound. Test hook.
func (c *MutationCoordinator) WithLockTimeout(d time.Duration) *MutationCoordinator {
	c.lockTimeout = d
	return c
}

// -----------------------------------------------------------------------------
// Write path
// -----------------------------------------------------------------------------

// Deposit credits amount to the account.
func (c *MutationCoordinator) Deposit(ctx context.Context, id AccountID, amount Amount, idempotencyKey string) (Receipt, error) {
	return c.run(ctx, id, amount, func(ctx context.Context) (Receipt, error) {
		return c.wallet.Deposit(ctx, id, amount, idempotencyKey)
	})
}

// Withdraw debits amount from the account.
func (c *MutationCoordinator) Withdraw(ctx context.Context, id AccountID, amount Amount, idempotencyKey string) (Receipt, error) {
	return c.run(ctx, id, amount.Neg(), func(ctx context.Context) (Receipt, error) {
		return c.wallet.Withdraw(ctx, id, amount, idempotencyKey)
	})
}

// Transfer debits amount from the sender toward counterparty.
func (c *MutationCoordinator) Transfer(ctx context.Context, from AccountID, counterparty string, amount Amount, idempotencyKey string) (Receipt, error) {
	return c.run(ctx, from, amount.Neg(), func(ctx context.Context) (Receipt, error) {
		return c.transfers.Transfer(ctx, from, counterparty, amount, idempotencyKey)
	})
}

// Wipe clears all persisted state for an account under its write lock, so
// it can never interleave with an in-flight commit's balance-then-append
// sequence. Views are invalidated balance first, like any other mutation.
func (c *MutationCoordinator) Wipe(ctx context.Context, id AccountID) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}

	release, err := c.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := c.accounts.Wipe(ctx, id); err != nil {
		return err
	}
	if c.invalidator != nil {
		c.invalidator.InvalidateBalance(id)
		c.invalidator.InvalidateTransactions(id)
	}
	return nil
}

func (c *MutationCoordinator) run(ctx context.Context, id AccountID, expectedDelta Amount, op func(context.Context) (Receipt, error)) (Receipt, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}

	release, err := c.locks.acquire(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	defer release()

	prior, err := c.balances.Balance(ctx, id)
	if err != nil {
		return Receipt{}, err
	}

	mutation := PendingMutation{
		MutationID:    uuid.NewString(),
		AccountID:     id,
		ExpectedDelta: expectedDelta,
		PriorBalance:  prior,
	}
	c.pending.add(mutation)
	receipt, err := op(ctx)
	// Consumed on success, and on failure rolling the optimistic view back
	// to the prior snapshot.
	c.pending.remove(mutation)
	if err != nil {
		return Receipt{}, err
	}

	// Hard ordering contract: the balance view is never staler than the
	// history view.
	if c.invalidator != nil {
		c.invalidator.InvalidateBalance(id)
		c.invalidator.InvalidateTransactions(id)
	}
	if c.events != nil && receipt.Outcome == OutcomeCompleted {
		if data, err := json.Marshal(receipt.Transaction); err == nil {
			_ = c.events.Publish(TopicTransactionCommitted, data)
		}
	}
	return receipt, nil
}

// -----------------------------------------------------------------------------
// Read path - no write lock, but observes the commit barrier: the balance
// is written before its transaction, so no read sees a transaction whose
// delta is missing.
// -----------------------------------------------------------------------------

// Balance returns the committed balance.
func (c *MutationCoordinator) Balance(ctx context.Context, id AccountID) (Amount, error) {
	return c.balances.Balance(ctx, id)
}

// OptimisticBalance returns the committed balance plus the expected deltas
// of in-flight mutations: the value an optimistic UI displays immediately.
// When an operation fails its pending delta is discarded, which rolls this
// view back to the prior snapshot.
func (c *MutationCoordinator) OptimisticBalance(ctx context.Context, id AccountID) (Amount, error) {
	committed, err := c.balances.Balance(ctx, id)
	if err != nil {
		return 0, err
	}
	return committed + c.pending.deltaFor(id), nil
}

// ListTransactions returns one newest-first history page.
func (c *MutationCoordinator) ListTransactions(ctx context.Context, id AccountID, beforeID TransactionID, pageSize int) (Page, error) {
	return c.log.List(ctx, id, beforeID, pageSize)
}
