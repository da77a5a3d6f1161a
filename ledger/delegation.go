/*
delegation.go - Spending delegates

PURPOSE:
  An account holder can name delegates who may spend on their behalf, each
  with a spending limit and an expiry one week out. Revocation deactivates
  the record rather than deleting it, so the list stays an audit trail.
  Delegate records never touch the balance or the transaction log; they
  are account metadata, outside the coordinator's atomic unit.

CONCURRENCY:
  Add and Revoke are read-modify-write over one key and serialize on an
  internal mutex. Reads take no lock.
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartbank/wallet-engine/kv"
)

type DelegateID string

// Delegate is one party authorized to spend against an account.
type Delegate struct {
	ID        DelegateID `json:"id"`
	Name      string     `json:"name"`
	Limit     Amount     `json:"limit"`
	Spent     Amount     `json:"spent"`
	Expiry    time.Time  `json:"expiry"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the delegate's authority has lapsed at now.
func (d Delegate) Expired(now time.Time) bool {
	return now.After(d.Expiry)
}

// DefaultDelegateTTL is how long a newly added delegate stays valid.
const DefaultDelegateTTL = 7 * 24 * time.Hour

// Delegations manages an account's delegate list.
type Delegations struct {
	mu        sync.Mutex
	codec     codec
	clock     Clock
	maxAmount Amount
}

func NewDelegations(store kv.Store) *Delegations {
	return &Delegations{codec: codec{store: store}, clock: time.Now, maxAmount: DefaultMaxAmount}
}

// WithClock overrides the timestamp source. Test hook.
func (d *Delegations) WithClock(clock Clock) *Delegations {
	d.clock = clock
	return d
}

// List returns the account's delegates, active and revoked alike, in the
// order they were added.
func (d *Delegations) List(ctx context.Context, id AccountID) ([]Delegate, error) {
	return d.codec.readDelegates(ctx, id)
}

// Add registers a delegate with a spending limit. The delegate starts
// active with nothing spent and expires after DefaultDelegateTTL.
func (d *Delegations) Add(ctx context.Context, id AccountID, name string, limit Amount) (Delegate, error) {
	if err := validateAmount(limit, d.maxAmount); err != nil {
		return Delegate{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	delegates, err := d.codec.readDelegates(ctx, id)
	if err != nil {
		return Delegate{}, err
	}

	now := d.clock().UTC()
	delegate := Delegate{
		ID:        DelegateID(uuid.NewString()),
		Name:      name,
		Limit:     limit,
		Spent:     0,
		Expiry:    now.Add(DefaultDelegateTTL),
		Active:    true,
		CreatedAt: now,
	}
	delegates = append(delegates, delegate)
	if err := d.codec.writeDelegates(ctx, id, delegates); err != nil {
		return Delegate{}, err
	}
	return delegate, nil
}

// Revoke deactivates a delegate. Revoking an already-revoked delegate is a
// no-op; an unknown id fails with ErrDelegateNotFound.
func (d *Delegations) Revoke(ctx context.Context, id AccountID, delegateID DelegateID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delegates, err := d.codec.readDelegates(ctx, id)
	if err != nil {
		return err
	}
	for i := range delegates {
		if delegates[i].ID == delegateID {
			delegates[i].Active = false
			return d.codec.writeDelegates(ctx, id, delegates)
		}
	}
	return fmt.Errorf("%w: %s", ErrDelegateNotFound, delegateID)
}
