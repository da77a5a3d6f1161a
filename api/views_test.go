package api_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbank/wallet-engine/api"
	"github.com/smartbank/wallet-engine/kv"
	"github.com/smartbank/wallet-engine/ledger"
)

func newTestViews(t *testing.T) (*api.ViewCache, *ledger.MutationCoordinator) {
	t.Helper()
	views, coordinator, _ := newTestViewsOn(t, kv.NewMemory())
	return views, coordinator
}

func newTestViewsOn(t *testing.T, store kv.Store) (*api.ViewCache, *ledger.MutationCoordinator, *ledger.BalanceLedger) {
	t.Helper()
	accounts := ledger.NewAccounts(store)
	balances := ledger.NewBalanceLedger(store)
	log := ledger.NewTransactionLog(store)
	coordinator := ledger.NewMutationCoordinator(
		accounts, balances, log,
		ledger.NewTransferProcessor(accounts, balances, log),
		ledger.NewWalletOperationProcessor(accounts, balances, log),
	)
	return api.NewViewCache(coordinator), coordinator, balances
}

func TestViewCache_ServesStaleUntilInvalidated(t *testing.T) {
	// The cache itself never watches the engine; freshness is entirely the
	// coordinator's invalidation signal. Without registering the cache as
	// the invalidator, a commit leaves the cached value stale.
	views, coordinator := newTestViews(t)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "u1", 10000, "")
	require.NoError(t, err)

	cached, err := views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(10000), cached)

	_, err = coordinator.Deposit(ctx, "u1", 5000, "")
	require.NoError(t, err)
	stale, err := views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(10000), stale, "not invalidated, still cached")

	views.InvalidateBalance("u1")
	fresh, err := views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(15000), fresh)
}

// fillGateStore lets a balance read complete and then stalls the reader
// before it returns, holding a captured value across a concurrent commit.
type fillGateStore struct {
	*kv.Memory
	armed  atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (s *fillGateStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Memory.Get(ctx, key)
	if strings.HasSuffix(key, ":balance") && s.armed.CompareAndSwap(true, false) {
		close(s.read)
		<-s.resume
	}
	return v, ok, err
}

func TestViewCache_RacingFill_NeverPinsPreCommitBalance(t *testing.T) {
	// GIVEN: A cache miss whose load captures the committed balance, then
	//        stalls while a deposit commits and invalidates the cache
	// WHEN: The stalled fill resumes and tries to install its value
	// THEN: The install is refused - the next read loads the post-commit
	//       balance instead of serving the pre-commit one forever

	store := &fillGateStore{
		Memory: kv.NewMemory(),
		read:   make(chan struct{}),
		resume: make(chan struct{}),
	}
	views, coordinator, _ := newTestViewsOn(t, store)
	coordinator.WithInvalidator(views)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "u1", 10000, "")
	require.NoError(t, err)

	// The stalled reader captures 10000 and holds it across the commit.
	store.armed.Store(true)
	captured := make(chan ledger.Amount, 1)
	go func() {
		balance, err := views.Balance(ctx, "u1")
		assert.NoError(t, err)
		captured <- balance
	}()
	<-store.read

	_, err = coordinator.Deposit(ctx, "u1", 5000, "")
	require.NoError(t, err)
	close(store.resume)

	// The racing fill returns the value that was committed when it read;
	// that is fine for its own caller.
	assert.Equal(t, ledger.Amount(10000), <-captured)

	// But a read issued after the completed write must see the new balance.
	fresh, err := views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(15000), fresh,
		"pre-commit fill must not be installed over an invalidation")
}

// fillGatePageStore stalls a transaction-list read the same way, for the
// history view's fill race.
type fillGatePageStore struct {
	*kv.Memory
	armed  atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (s *fillGatePageStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Memory.Get(ctx, key)
	if strings.HasSuffix(key, ":transactions") && s.armed.CompareAndSwap(true, false) {
		close(s.read)
		<-s.resume
	}
	return v, ok, err
}

func TestViewCache_RacingFill_NeverPinsStaleFirstPage(t *testing.T) {
	store := &fillGatePageStore{
		Memory: kv.NewMemory(),
		read:   make(chan struct{}),
		resume: make(chan struct{}),
	}
	views, coordinator, _ := newTestViewsOn(t, store)
	coordinator.WithInvalidator(views)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "u1", 10000, "")
	require.NoError(t, err)

	store.armed.Store(true)
	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		_, err := views.FirstPage(ctx, "u1", 10)
		assert.NoError(t, err)
	}()
	<-store.read

	_, err = coordinator.Withdraw(ctx, "u1", 4000, "")
	require.NoError(t, err)
	close(store.resume)
	<-loaded

	page, err := views.FirstPage(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2, "stale one-item page must not be pinned")
	assert.Equal(t, ledger.KindWithdraw, page.Items[0].Kind)
}

func TestViewCache_FirstPage_SmallerRequestTrimsCachedPage(t *testing.T) {
	// GIVEN: A cached five-item first page
	// WHEN: A client asks for two items
	// THEN: It gets exactly two, with a cursor that continues the walk
	//       without duplicates or gaps

	views, coordinator := newTestViews(t)
	coordinator.WithInvalidator(views)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := coordinator.Deposit(ctx, "u1", ledger.Amount(100*(i+1)), "")
		require.NoError(t, err)
	}

	full, err := views.FirstPage(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, full.Items, 5)
	require.False(t, full.HasMore)

	trimmed, err := views.FirstPage(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, trimmed.Items, 2)
	assert.True(t, trimmed.HasMore)
	assert.Equal(t, trimmed.Items[1].ID, trimmed.NextCursor)
	assert.Equal(t, full.Items[0].ID, trimmed.Items[0].ID)

	// The cursor picks up exactly where the trimmed page stopped.
	rest, err := coordinator.ListTransactions(ctx, "u1", trimmed.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, rest.Items, 3)
	assert.Equal(t, full.Items[2].ID, rest.Items[0].ID)
	assert.Equal(t, full.Items[4].ID, rest.Items[2].ID)
}

func TestViewCache_RegisteredInvalidator_FreshAfterEveryCommit(t *testing.T) {
	views, coordinator := newTestViews(t)
	coordinator.WithInvalidator(views)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "u1", 10000, "")
	require.NoError(t, err)
	balance, err := views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(10000), balance)

	page, err := views.FirstPage(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	_, err = coordinator.Withdraw(ctx, "u1", 4000, "")
	require.NoError(t, err)

	balance, err = views.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(6000), balance)

	page, err = views.FirstPage(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ledger.KindWithdraw, page.Items[0].Kind)
}
