/*
accounts.go - Account profiles

PURPOSE:
  An account is created implicitly with a zero balance the first time a
  user id with no prior persisted state is touched. Profiles carry the
  account's native currency and the demo flag; they are never deleted, only
  wiped by an explicit administrative reset.
*/
package ledger

import (
	"context"
	"time"

	"github.com/smartbank/wallet-engine/kv"
)

// Account is the stored profile for one user's wallet.
type Account struct {
	ID        AccountID `json:"id"`
	Currency  Currency  `json:"currency"`
	Demo      bool      `json:"demo"`
	CreatedAt time.Time `json:"created_at"`
}

// Accounts manages account profiles.
type Accounts struct {
	codec codec
	clock Clock
}

func NewAccounts(store kv.Store) *Accounts {
	return &Accounts{codec: codec{store: store}, clock: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (a *Accounts) WithClock(clock Clock) *Accounts {
	a.clock = clock
	return a
}

// Get returns the profile for id, creating a default one (zero balance,
// default currency, not demo) at first use.
func (a *Accounts) Get(ctx context.Context, id AccountID) (Account, error) {
	existing, err := a.codec.readProfile(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	acct := Account{
		ID:        id,
		Currency:  DefaultCurrency,
		CreatedAt: a.clock().UTC(),
	}
	if err := a.codec.writeProfile(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Create writes a profile explicitly, e.g. when seeding the demo account.
func (a *Accounts) Create(ctx context.Context, id AccountID, currency Currency, demo bool) (Account, error) {
	acct := Account{
		ID:        id,
		Currency:  currency,
		Demo:      demo,
		CreatedAt: a.clock().UTC(),
	}
	if err := a.codec.writeProfile(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Wipe removes all persisted state for an account: profile, balance,
// transaction history, and delegates. Administrative operation only.
func (a *Accounts) Wipe(ctx context.Context, id AccountID) error {
	for _, key := range []string{balanceKey(id), transactionsKey(id), profileKey(id), delegatesKey(id)} {
		if err := a.codec.remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
