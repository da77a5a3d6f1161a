package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbank/wallet-engine/bus"
	"github.com/smartbank/wallet-engine/kv"
	"github.com/smartbank/wallet-engine/ledger"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// recordingInvalidator captures invalidation calls in arrival order so the
// balance-before-history contract can be asserted.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) InvalidateBalance(id ledger.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "balance:"+string(id))
}

func (r *recordingInvalidator) InvalidateTransactions(id ledger.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "transactions:"+string(id))
}

func (r *recordingInvalidator) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// failingPublisher always errors. Commits must not care.
type failingPublisher struct{}

func (failingPublisher) Publish(string, []byte) error { return assert.AnError }

// =============================================================================
// CONCURRENT WRITERS - The funds check cannot be raced past
// =============================================================================

func TestCoordinator_ConcurrentFullWithdrawals_ExactlyOneSucceeds(t *testing.T) {
	// GIVEN: A balance of 100.00
	// WHEN: Two concurrent withdrawals for the full 100.00 race
	// THEN: Exactly one commits; the other observes the first's effect and
	//       fails the funds check - the balance never goes negative

	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.coordinator.Deposit(ctx, "acct-1", 10000, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.coordinator.Withdraw(ctx, "acct-1", 10000, "")
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	balance, err := e.coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(0), balance)
	requireBalanceSum(t, e, "acct-1")
}

func TestCoordinator_ManyConcurrentDeposits_AllApply(t *testing.T) {
	// 50 writers on one account serialize; none is lost, none double-applies.
	e := newTestEngine(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.coordinator.Deposit(ctx, "acct-1", 100, fmt.Sprintf("dep-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, err := e.coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(100*n), balance)

	txs, err := e.log.All(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, txs, n)
	requireBalanceSum(t, e, "acct-1")
}

func TestCoordinator_UnrelatedAccounts_NotSerialized(t *testing.T) {
	// Writers on different accounts proceed in parallel; this mostly guards
	// against a regression to one global lock deadlocking under load.
	e := newTestEngine(t)
	ctx := context.Background()

	const accounts = 8
	var wg sync.WaitGroup
	for i := 0; i < accounts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ledger.AccountID(fmt.Sprintf("acct-%d", i))
			for j := 0; j < 10; j++ {
				_, err := e.coordinator.Deposit(ctx, id, 50, "")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < accounts; i++ {
		id := ledger.AccountID(fmt.Sprintf("acct-%d", i))
		balance, err := e.coordinator.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.Amount(500), balance)
	}
}

// gateStore blocks a single balance read after being armed, so a test can
// hold one writer inside the locked section while another waits in the queue.
type gateStore struct {
	*kv.Memory
	armed   atomic.Bool
	entered chan struct{}
	wait    chan struct{}
}

func (s *gateStore) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasSuffix(key, ":balance") && s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.wait
	}
	return s.Memory.Get(ctx, key)
}

func TestCoordinator_LockWaitExceedsDeadline_ConcurrencyConflict(t *testing.T) {
	// GIVEN: A writer holding the account lock longer than the caller waits
	// WHEN: A second writer's context expires in the queue
	// THEN: It fails with the retryable conflict error, having changed nothing

	store := &gateStore{
		Memory:  kv.NewMemory(),
		entered: make(chan struct{}),
		wait:    make(chan struct{}),
	}
	accounts := ledger.NewAccounts(store)
	balances := ledger.NewBalanceLedger(store)
	log := ledger.NewTransactionLog(store)
	coordinator := ledger.NewMutationCoordinator(
		accounts, balances, log,
		ledger.NewTransferProcessor(accounts, balances, log),
		ledger.NewWalletOperationProcessor(accounts, balances, log),
	)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "acct-1", 10000, "")
	require.NoError(t, err)

	// The slow writer acquires the lock, then stalls on its balance read.
	store.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := coordinator.Withdraw(ctx, "acct-1", 100, "")
		assert.NoError(t, err)
	}()
	<-store.entered

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = coordinator.Withdraw(shortCtx, "acct-1", 100, "")
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.True(t, ledger.IsRetryable(err))

	close(store.wait)
	<-done

	balance, err := coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(9900), balance, "only the slow writer committed")
}

func TestCoordinator_Wipe_WaitsForInFlightWriter(t *testing.T) {
	// GIVEN: A writer holding the account lock mid-commit
	// WHEN: A wipe for the same account arrives
	// THEN: The wipe queues behind the writer rather than destroying state
	//       under its feet - with a short deadline it conflicts, after the
	//       writer releases it succeeds and leaves the account empty

	store := &gateStore{
		Memory:  kv.NewMemory(),
		entered: make(chan struct{}),
		wait:    make(chan struct{}),
	}
	accounts := ledger.NewAccounts(store)
	balances := ledger.NewBalanceLedger(store)
	log := ledger.NewTransactionLog(store)
	coordinator := ledger.NewMutationCoordinator(
		accounts, balances, log,
		ledger.NewTransferProcessor(accounts, balances, log),
		ledger.NewWalletOperationProcessor(accounts, balances, log),
	)
	rec := &recordingInvalidator{}
	coordinator.WithInvalidator(rec)
	ctx := context.Background()

	_, err := coordinator.Deposit(ctx, "acct-1", 10000, "")
	require.NoError(t, err)

	store.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := coordinator.Withdraw(ctx, "acct-1", 100, "")
		assert.NoError(t, err)
	}()
	<-store.entered

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = coordinator.Wipe(shortCtx, "acct-1")
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	close(store.wait)
	<-done

	// The blocked wipe changed nothing: the withdrawal's commit survived.
	balance, err := coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(9900), balance)

	require.NoError(t, coordinator.Wipe(ctx, "acct-1"))
	balance, err = coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(0), balance)
	txs, err := log.All(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, txs)

	calls := rec.snapshot()
	require.NotEmpty(t, calls)
	assert.Equal(t, []string{"balance:acct-1", "transactions:acct-1"},
		calls[len(calls)-2:], "wipe invalidates views, balance first")
}

// =============================================================================
// OPTIMISTIC BALANCE - Pending deltas and rollback-by-discard
// =============================================================================

func TestCoordinator_OptimisticBalance_NoPending_EqualsCommitted(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.coordinator.Deposit(ctx, "acct-1", 10000, "")
	require.NoError(t, err)

	committed, err := e.coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	optimistic, err := e.coordinator.OptimisticBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, committed, optimistic)
}

func TestCoordinator_FailedOperation_OptimisticViewRollsBack(t *testing.T) {
	// GIVEN: A committed balance of 50.00
	// WHEN: A withdrawal fails mid-unit on a storage error
	// THEN: The pending delta is discarded and the optimistic view reads the
	//       prior snapshot again - no partial value survives

	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.coordinator.Deposit(ctx, "acct-1", 5000, "")
	require.NoError(t, err)

	e.store.FailNext = assert.AnError
	_, err = e.coordinator.Withdraw(ctx, "acct-1", 2000, "")
	require.Error(t, err)

	optimistic, err := e.coordinator.OptimisticBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(5000), optimistic)
	requireBalanceSum(t, e, "acct-1")
}

// =============================================================================
// VISIBLE-EFFECT ORDERING - Balance view first, history view second
// =============================================================================

func TestCoordinator_Invalidation_BalanceBeforeTransactions(t *testing.T) {
	e := newTestEngine(t)
	rec := &recordingInvalidator{}
	e.coordinator.WithInvalidator(rec)
	ctx := context.Background()

	_, err := e.coordinator.Deposit(ctx, "acct-1", 1000, "")
	require.NoError(t, err)
	_, err = e.coordinator.Withdraw(ctx, "acct-1", 400, "")
	require.NoError(t, err)

	calls := rec.snapshot()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{
		"balance:acct-1", "transactions:acct-1",
		"balance:acct-1", "transactions:acct-1",
	}, calls)
}

func TestCoordinator_FailedOperation_NoInvalidation(t *testing.T) {
	// Views invalidate only on commit; a rejection changes nothing visible.
	e := newTestEngine(t)
	rec := &recordingInvalidator{}
	e.coordinator.WithInvalidator(rec)
	ctx := context.Background()

	_, err := e.coordinator.Withdraw(ctx, "acct-1", 10000, "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Empty(t, rec.snapshot())
}

// =============================================================================
// EVENT STREAM - Best-effort, commit-gated
// =============================================================================

func TestCoordinator_CommittedTransaction_Published(t *testing.T) {
	// GIVEN: An in-process bus subscriber on the committed-transactions topic
	// WHEN: A deposit commits
	// THEN: The subscriber receives the transaction JSON

	e := newTestEngine(t)
	b := bus.NewMemory()
	sub := b.Subscribe(ledger.TopicTransactionCommitted, 4)
	e.coordinator.WithEventPublisher(b)
	ctx := context.Background()

	receipt, err := e.coordinator.Deposit(ctx, "acct-1", 2500, "")
	require.NoError(t, err)

	select {
	case data := <-sub:
		var tx ledger.Transaction
		require.NoError(t, json.Unmarshal(data, &tx))
		assert.Equal(t, receipt.Transaction.ID, tx.ID)
		assert.Equal(t, ledger.Amount(2500), tx.Amount)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestCoordinator_DuplicateReplay_NotPublished(t *testing.T) {
	// A replay committed nothing, so subscribers hear nothing.
	e := newTestEngine(t)
	b := bus.NewMemory()
	sub := b.Subscribe(ledger.TopicTransactionCommitted, 4)
	e.coordinator.WithEventPublisher(b)
	ctx := context.Background()

	_, err := e.coordinator.Deposit(ctx, "acct-1", 1000, "k-1")
	require.NoError(t, err)
	<-sub // the original commit's event

	_, err = e.coordinator.Deposit(ctx, "acct-1", 1000, "k-1")
	require.NoError(t, err)

	select {
	case data := <-sub:
		t.Fatalf("unexpected event for duplicate replay: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinator_PublisherFailure_CommitUnaffected(t *testing.T) {
	e := newTestEngine(t)
	e.coordinator.WithEventPublisher(failingPublisher{})
	ctx := context.Background()

	receipt, err := e.coordinator.Deposit(ctx, "acct-1", 1000, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeCompleted, receipt.Outcome)

	balance, err := e.coordinator.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(1000), balance)
}
