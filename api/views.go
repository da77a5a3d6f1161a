/*
views.go - Cached read views and the invalidation contract

PURPOSE:
  The balance display and the first history page are the two hottest reads,
  so they are cached here. The MutationCoordinator invalidates this cache
  after every commit, always balance first and history second: a reader can
  briefly see a fresh balance with a stale history page, but never a new
  transaction whose delta is missing from the balance.

FILL RACE:
  Load-on-miss has a window: a reader can fetch the committed value, lose
  the CPU, and try to install it after a commit already invalidated the
  cache - pinning a pre-commit value until the next write. Each account
  carries an epoch that invalidation bumps; a loaded value is installed
  only if the epoch it was loaded under is still current. A racing fill is
  returned to its own caller (it was correct when read) but never cached.
*/
package api

import (
	"context"
	"sync"

	"github.com/smartbank/wallet-engine/ledger"
)

// ViewCache implements ledger.Invalidator over per-account cached views.
type ViewCache struct {
	coordinator *ledger.MutationCoordinator

	mu            sync.Mutex
	balances      map[ledger.AccountID]ledger.Amount
	balanceEpochs map[ledger.AccountID]uint64
	firstPages    map[ledger.AccountID]ledger.Page
	pageEpochs    map[ledger.AccountID]uint64
}

func NewViewCache(coordinator *ledger.MutationCoordinator) *ViewCache {
	return &ViewCache{
		coordinator:   coordinator,
		balances:      make(map[ledger.AccountID]ledger.Amount),
		balanceEpochs: make(map[ledger.AccountID]uint64),
		firstPages:    make(map[ledger.AccountID]ledger.Page),
		pageEpochs:    make(map[ledger.AccountID]uint64),
	}
}

// InvalidateBalance drops the cached balance and bumps the epoch so any
// in-flight fill that read the pre-commit value cannot install it. Called
// by the coordinator before InvalidateTransactions - ordering is its
// contract, not ours.
func (v *ViewCache) InvalidateBalance(id ledger.AccountID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.balances, id)
	v.balanceEpochs[id]++
}

func (v *ViewCache) InvalidateTransactions(id ledger.AccountID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.firstPages, id)
	v.pageEpochs[id]++
}

// Balance returns the cached committed balance, loading on miss.
func (v *ViewCache) Balance(ctx context.Context, id ledger.AccountID) (ledger.Amount, error) {
	v.mu.Lock()
	cached, ok := v.balances[id]
	epoch := v.balanceEpochs[id]
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	balance, err := v.coordinator.Balance(ctx, id)
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	if v.balanceEpochs[id] == epoch {
		v.balances[id] = balance
	}
	v.mu.Unlock()
	return balance, nil
}

// FirstPage returns the cached newest-first first page, loading on miss.
// Deeper pages are cursor-anchored and append-stable, so they bypass the
// cache entirely.
func (v *ViewCache) FirstPage(ctx context.Context, id ledger.AccountID, pageSize int) (ledger.Page, error) {
	v.mu.Lock()
	cached, ok := v.firstPages[id]
	epoch := v.pageEpochs[id]
	v.mu.Unlock()
	if ok && len(cached.Items) >= pageSize {
		return trimPage(cached, pageSize), nil
	}

	page, err := v.coordinator.ListTransactions(ctx, id, "", pageSize)
	if err != nil {
		return ledger.Page{}, err
	}

	v.mu.Lock()
	if v.pageEpochs[id] == epoch {
		v.firstPages[id] = page
	}
	v.mu.Unlock()
	return page, nil
}

// trimPage cuts a cached page down to the requested size, recomputing the
// cursor and HasMore for the shorter page.
func trimPage(page ledger.Page, pageSize int) ledger.Page {
	if len(page.Items) <= pageSize {
		return page
	}
	items := page.Items[:pageSize]
	return ledger.Page{
		Items:      items,
		NextCursor: items[pageSize-1].ID,
		HasMore:    true,
	}
}
