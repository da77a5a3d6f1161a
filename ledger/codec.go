/*
codec.go - The single (de)serialization boundary over the KeyValueStore

PURPOSE:
  All keys and all JSON encoding live here, in one place. The source of the
  original system scattered parse/stringify across every call site, which
  made its atomicity impossible to reason about; centralizing the boundary
  keeps the commit discipline enforceable.

KEY NAMESPACE (per account):
  account:{id}:balance       single integer scalar, minor units
  account:{id}:transactions  JSON array in append (oldest-first) order
  account:{id}:profile       JSON account profile
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/smartbank/wallet-engine/kv"
)

func balanceKey(id AccountID) string      { return fmt.Sprintf("account:%s:balance", id) }
func transactionsKey(id AccountID) string { return fmt.Sprintf("account:%s:transactions", id) }
func profileKey(id AccountID) string      { return fmt.Sprintf("account:%s:profile", id) }
func delegatesKey(id AccountID) string    { return fmt.Sprintf("account:%s:delegates", id) }

// codec reads and writes typed values through a kv.Store, translating
// backend failures into StorageError.
type codec struct {
	store kv.Store
}

func (c codec) readBalance(ctx context.Context, id AccountID) (Amount, error) {
	key := balanceKey(id)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("corrupt balance %q: %w", raw, err)}
	}
	return Amount(n), nil
}

func (c codec) writeBalance(ctx context.Context, id AccountID, balance Amount) error {
	key := balanceKey(id)
	if err := c.store.Set(ctx, key, strconv.FormatInt(int64(balance), 10)); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c codec) readTransactions(ctx context.Context, id AccountID) ([]Transaction, error) {
	key := transactionsKey(id)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}
	var txs []Transaction
	if err := json.Unmarshal([]byte(raw), &txs); err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("corrupt transaction log: %w", err)}
	}
	return txs, nil
}

func (c codec) writeTransactions(ctx context.Context, id AccountID, txs []Transaction) error {
	key := transactionsKey(id)
	data, err := json.Marshal(txs)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c codec) readDelegates(ctx context.Context, id AccountID) ([]Delegate, error) {
	key := delegatesKey(id)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}
	var delegates []Delegate
	if err := json.Unmarshal([]byte(raw), &delegates); err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("corrupt delegate list: %w", err)}
	}
	return delegates, nil
}

func (c codec) writeDelegates(ctx context.Context, id AccountID, delegates []Delegate) error {
	key := delegatesKey(id)
	data, err := json.Marshal(delegates)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c codec) readProfile(ctx context.Context, id AccountID) (*Account, error) {
	key := profileKey(id)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}
	var acct Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("corrupt profile: %w", err)}
	}
	return &acct, nil
}

func (c codec) writeProfile(ctx context.Context, acct Account) error {
	key := profileKey(acct.ID)
	data, err := json.Marshal(acct)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c codec) remove(ctx context.Context, key string) error {
	if err := c.store.Remove(ctx, key); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}
