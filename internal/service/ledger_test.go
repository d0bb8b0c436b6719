package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"digipiggy/internal/domain"
	"digipiggy/internal/repository"
	"digipiggy/internal/testutil"
	"digipiggy/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedger_GetOrCreateWallet(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)

	wallet, err := ledger.GetOrCreateWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
	assert.True(t, wallet.MonthlySaved.IsZero())

	again, err := ledger.GetOrCreateWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
}

func TestLedger_GetOrCreateWallet_Concurrent(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)

	const callers = 16
	ids := make(chan uint, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := ledger.GetOrCreateWallet(context.Background(), 9)
			assert.NoError(t, err)
			ids <- w.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		assert.Equal(t, first, id)
	}
}

func TestLedger_SerialDeposits(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	amounts := []string{"5", "0.10", "12.34", "100", "0.01"}
	sum := decimal.Zero
	for _, a := range amounts {
		w, err := ledger.Deposit(ctx, 1, dec(a))
		require.NoError(t, err)
		sum = sum.Add(dec(a))
		assert.True(t, w.Balance.Equal(sum), "balance %s want %s", w.Balance, sum)
		assert.True(t, w.MonthlySaved.Equal(sum))
	}

	page, err := ledger.ListMyTransactions(ctx, 1, 1, 100)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, len(amounts))
	assert.Equal(t, int64(len(amounts)), page.Total)
	ledgerSum := decimal.Zero
	for _, tx := range page.Transactions {
		ledgerSum = ledgerSum.Add(tx.Amount)
		assert.Equal(t, domain.TransactionTypeDeposit, tx.Type)
		assert.Equal(t, uint(1), tx.UserID)
	}
	assert.True(t, ledgerSum.Equal(sum))

	report, err := ledger.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(len(amounts)), report.Entries)
}

func TestLedger_ConcurrentDepositsNoLostUpdate(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, a := range []string{"5", "7"} {
		wg.Add(1)
		go func(amount string) {
			defer wg.Done()
			_, err := ledger.Deposit(ctx, 1, dec(amount))
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	wallet, err := ledger.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("12")), "balance %s", wallet.Balance)
	assert.Equal(t, 2, store.TransactionCount())
}

func TestLedger_ManyConcurrentDeposits(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, user := range []uint{1, 2} {
			wg.Add(1)
			go func(u uint) {
				defer wg.Done()
				_, err := ledger.Deposit(ctx, u, dec("1.25"))
				assert.NoError(t, err)
			}(user)
		}
	}
	wg.Wait()

	for _, user := range []uint{1, 2} {
		report, err := ledger.Reconcile(ctx, user)
		require.NoError(t, err)
		assert.True(t, report.Balance.Equal(dec("62.5")))
		assert.True(t, report.Consistent)
		assert.Equal(t, int64(n), report.Entries)
	}
}

func TestLedger_DepositValidation(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	for _, a := range []string{"0", "-5", "0.001", "10000000000000"} {
		t.Run(a, func(t *testing.T) {
			_, err := ledger.Deposit(ctx, 1, dec(a))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	assert.Equal(t, 0, store.TransactionCount())
	wallet, err := ledger.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestValidateAmount_ExtremeExponents(t *testing.T) {
	cases := []struct {
		name   string
		amount decimal.Decimal
		msg    string
	}{
		{"huge exponent", decimal.New(1, 20000000), "amount is too large"},
		{"just above limit", decimal.New(1, 14), "amount is too large"},
		{"tiny exponent", decimal.New(1, -20000000), "amount must have at most 2 decimal places"},
		{"long coefficient", dec("1" + strings.Repeat("0", 60)), "amount is too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			err := ValidateAmount(tc.amount)
			assert.Less(t, time.Since(start), 100*time.Millisecond)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tc.msg, domain.PublicMessage(err))
		})
	}

	for _, ok := range []string{"0.01", "12.50", "12.500000", "9999999999999.99", "5e2"} {
		assert.NoError(t, ValidateAmount(dec(ok)), ok)
	}
}

func TestLedger_DepositFailureLeavesNoPartialState(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	_, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)

	store.FailDeposit = errors.New("insert failed")
	_, err = ledger.Deposit(ctx, 1, dec("7"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, "deposit failed", domain.PublicMessage(err))

	store.FailDeposit = nil
	report, err := ledger.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Balance.Equal(dec("5")))
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, store.TransactionCount())
}

func TestLedger_DepositCancelledContext(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.Deposit(ctx, 1, dec("5"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 0, store.TransactionCount())
}

func TestLedger_ListNewestFirst(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	for _, a := range []string{"1", "2", "3"} {
		_, err := ledger.Deposit(ctx, 1, dec(a))
		require.NoError(t, err)
	}
	_, err := ledger.Deposit(ctx, 2, dec("50"))
	require.NoError(t, err)

	page, err := ledger.ListMyTransactions(ctx, 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	assert.True(t, page.Transactions[0].Amount.Equal(dec("3")))
	assert.True(t, page.Transactions[1].Amount.Equal(dec("2")))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	all, err := ledger.ListAllTransactions(ctx, repository.TxFilter{Type: domain.TransactionTypeDeposit}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
}

func TestLedger_ReconcileDetectsDrift(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	_, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	store.SetBalance(1, dec("6"))

	report, err := ledger.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.True(t, report.LedgerSum.Equal(dec("5")))

	_, err = ledger.Reconcile(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func newRedisCache(t *testing.T) (*utils.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return utils.NewCache(rdb, time.Minute), mr
}

func TestLedger_CacheInvalidatedOnDeposit(t *testing.T) {
	cache, mr := newRedisCache(t)
	store := testutil.NewMemStore()
	ledger := NewLedger(store, cache)
	ctx := context.Background()

	_, err := ledger.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	_, err = ledger.ListMyTransactions(ctx, 1, 1, 20)
	require.NoError(t, err)
	assert.True(t, mr.Exists(utils.WalletKey(1, 0)))
	assert.True(t, mr.Exists(utils.TxHistoryKey(1, 0, 1, 20)))

	_, err = ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.WalletKey(1, 0)))
	assert.False(t, mr.Exists(utils.TxHistoryKey(1, 0, 1, 20)))
	gen, err := cache.Generation(ctx, utils.UserGenerationKey(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	wallet, err := ledger.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("5")))
	assert.True(t, mr.Exists(utils.WalletKey(1, 1)))

	page, err := ledger.ListMyTransactions(ctx, 1, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
}

// pausingStore blocks the first wallet or history read after it has loaded
// its rows, until release is closed.
type pausingStore struct {
	*testutil.MemStore
	loaded  chan struct{}
	release chan struct{}
	paused  sync.Once
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		MemStore: testutil.NewMemStore(),
		loaded:   make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (p *pausingStore) hold() {
	p.paused.Do(func() {
		close(p.loaded)
		<-p.release
	})
}

func (p *pausingStore) GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error) {
	w, err := p.MemStore.GetOrCreate(ctx, userID)
	p.hold()
	return w, err
}

func (p *pausingStore) ListTransactions(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	txs, total, err := p.MemStore.ListTransactions(ctx, userID, page, pageSize)
	p.hold()
	return txs, total, err
}

func TestLedger_StaleWalletReadIsNotRecachedAfterDeposit(t *testing.T) {
	cache, _ := newRedisCache(t)
	store := newPausingStore()
	ledger := NewLedger(store, cache)
	ctx := context.Background()

	done := make(chan *domain.Wallet)
	go func() {
		w, err := ledger.GetOrCreateWallet(ctx, 1)
		assert.NoError(t, err)
		done <- w
	}()
	<-store.loaded

	_, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	close(store.release)
	stale := <-done
	require.NotNil(t, stale)
	assert.True(t, stale.Balance.IsZero())

	wallet, err := ledger.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("5")), "got %s", wallet.Balance)
}

func TestLedger_StaleHistoryReadIsNotRecachedAfterDeposit(t *testing.T) {
	cache, _ := newRedisCache(t)
	store := newPausingStore()
	ledger := NewLedger(store, cache)
	ctx := context.Background()

	done := make(chan *TransactionPage)
	go func() {
		page, err := ledger.ListMyTransactions(ctx, 1, 1, 20)
		assert.NoError(t, err)
		done <- page
	}()
	<-store.loaded

	_, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	close(store.release)
	stale := <-done
	require.NotNil(t, stale)
	assert.Empty(t, stale.Transactions)

	page, err := ledger.ListMyTransactions(ctx, 1, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.True(t, page.Transactions[0].Amount.Equal(dec("5")))
}

func TestLedger_DepositRetiresAdminUserPages(t *testing.T) {
	cache, mr := newRedisCache(t)
	ledger := NewLedger(testutil.NewMemStore(), cache)
	ctx := context.Background()

	require.NoError(t, cache.SetCache(ctx, utils.AdminUsersKey(0, 1, 20), "page"))
	_, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.AdminUsersKey(0, 1, 20)))
	gen, err := cache.Generation(ctx, utils.AdminUsersGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	// First wallet access creates an empty wallet shown on the admin pages
	require.NoError(t, cache.SetCache(ctx, utils.AdminUsersKey(1, 1, 20), "page"))
	_, err = ledger.GetOrCreateWallet(ctx, 2)
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.AdminUsersKey(1, 1, 20)))
}

func TestLedger_CacheDownDoesNotFailRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	ledger := NewLedger(testutil.NewMemStore(), utils.NewCache(rdb, time.Minute))
	ctx := context.Background()

	w, err := ledger.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("5")))

	_, err = ledger.GetOrCreateWallet(ctx, 1)
	assert.NoError(t, err)
}

func TestLedger_ReconcileAll(t *testing.T) {
	store := testutil.NewMemStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	for user := uint(1); user <= sweepBatch+5; user++ {
		_, err := ledger.Deposit(ctx, user, dec("1.50"))
		require.NoError(t, err)
	}

	result, err := ledger.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sweepBatch+5, result.Checked)
	assert.Empty(t, result.Inconsistent)

	store.SetBalance(3, dec("99"))
	store.SetBalance(sweepBatch+4, dec("0"))
	result, err = ledger.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sweepBatch+5, result.Checked)
	assert.ElementsMatch(t, []uint{3, sweepBatch + 4}, result.Inconsistent)
}
