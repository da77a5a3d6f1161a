/*
log.go - Append-only transaction log

PURPOSE:
  The TransactionLog is the immutable record of completed monetary events:
  source of truth for history views and for idempotency lookups. No Update,
  no Delete. Timestamps are clamped monotonically non-decreasing per
  account so the newest-first ordering is stable.

PAGINATION:
  History pages are cursor-based: a page boundary is the last-seen
  transaction's position, not a numeric offset, so transactions appended
  while a client is paging never shift the pages it already fetched.

IDEMPOTENCY:
  Append rejects a transaction whose idempotency key already exists for
  the account. This is a defensive double-check - processors resolve
  duplicates into a duplicate Receipt before ever reaching Append - but
  it closes the door on any caller that skips the guard.
*/
package ledger

import (
	"context"
	"time"

	"github.com/smartbank/wallet-engine/kv"
)

// DefaultPageSize is used when a history query asks for zero or negative
// page sizes. MaxPageSize caps a single page.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one slice of newest-first history.
type Page struct {
	Items []Transaction
	// NextCursor anchors the following page; empty when HasMore is false.
	NextCursor TransactionID
	HasMore    bool
}

// TransactionLog persists completed transactions for each account.
type TransactionLog struct {
	codec codec
	clock Clock
}

func NewTransactionLog(store kv.Store) *TransactionLog {
	return &TransactionLog{codec: codec{store: store}, clock: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (l *TransactionLog) WithClock(clock Clock) *TransactionLog {
	l.clock = clock
	return l
}

// Append records a completed transaction and returns the stored record.
// Missing ID/CreatedAt/Status fields are filled in; CreatedAt is clamped so
// it never precedes the account's latest transaction.
//
// NOT self-serializing: the caller holds the per-account lock.
func (l *TransactionLog) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	txs, err := l.codec.readTransactions(ctx, tx.AccountID)
	if err != nil {
		return Transaction{}, err
	}

	if tx.IdempotencyKey != "" {
		for _, existing := range txs {
			if existing.IdempotencyKey == tx.IdempotencyKey {
				return Transaction{}, ErrDuplicateIdempotencyKey
			}
		}
	}

	if tx.ID == "" {
		tx.ID = NewTransactionID()
	}
	if tx.Status == "" {
		tx.Status = StatusCompleted
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.clock().UTC()
	}
	if last := len(txs) - 1; last >= 0 && tx.CreatedAt.Before(txs[last].CreatedAt) {
		tx.CreatedAt = txs[last].CreatedAt
	}

	txs = append(txs, tx)
	if err := l.codec.writeTransactions(ctx, tx.AccountID, txs); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// List returns one newest-first page. An empty beforeID starts at the most
// recent transaction; otherwise the page starts just after the transaction
// with that ID. A cursor that no longer exists (wiped log) yields an empty
// final page rather than restarting from the top, so callers never see
// duplicates.
func (l *TransactionLog) List(ctx context.Context, id AccountID, beforeID TransactionID, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	txs, err := l.codec.readTransactions(ctx, id)
	if err != nil {
		return Page{}, err
	}

	// Stored order is append order with non-decreasing timestamps, so
	// newest-first is a reverse walk; insertion order breaks timestamp ties.
	start := len(txs) - 1
	if beforeID != "" {
		start = -1
		for i := len(txs) - 1; i >= 0; i-- {
			if txs[i].ID == beforeID {
				start = i - 1
				break
			}
		}
		if start < 0 {
			return Page{}, nil
		}
	}

	var page Page
	for i := start; i >= 0 && len(page.Items) < pageSize; i-- {
		page.Items = append(page.Items, txs[i])
	}
	if n := len(page.Items); n == pageSize && start-n >= 0 {
		page.NextCursor = page.Items[n-1].ID
		page.HasMore = true
	}
	return page, nil
}

// FindByIdempotencyKey returns the transaction recorded for (account, key),
// or nil when the key has never been applied.
func (l *TransactionLog) FindByIdempotencyKey(ctx context.Context, id AccountID, key string) (*Transaction, error) {
	if key == "" {
		return nil, nil
	}
	txs, err := l.codec.readTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		if txs[i].IdempotencyKey == key {
			return &txs[i], nil
		}
	}
	return nil, nil
}

// All returns the full history in append (oldest-first) order. Used for
// invariant checks and whole-account views.
func (l *TransactionLog) All(ctx context.Context, id AccountID) ([]Transaction, error) {
	return l.codec.readTransactions(ctx, id)
}
