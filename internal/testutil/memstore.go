// Package testutil provides in-memory stores for service and handler tests.
package testutil

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"digipiggy/internal/domain"
	"digipiggy/internal/repository"

	"github.com/shopspring/decimal"
)

// MemStore implements the user and wallet stores in memory. Deposits on the
// same wallet serialize on a per-wallet mutex, mirroring the row lock of the
// MySQL store; different wallets never share a lock.
type MemStore struct {
	mu           sync.Mutex
	nextID       uint
	users        map[uint]*domain.User
	wallets      map[uint]*domain.Wallet // by user ID
	walletLocks  map[uint]*sync.Mutex    // by wallet ID
	transactions []domain.Transaction
	now          func() time.Time

	// FailDeposit, when set, makes the ledger insert of every deposit fail
	// after the balance was computed. Nothing is applied.
	FailDeposit error
}

// NewMemStore creates an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[uint]*domain.User),
		wallets:     make(map[uint]*domain.Wallet),
		walletLocks: make(map[uint]*sync.Mutex),
		now:         time.Now,
	}
}

func (m *MemStore) id() uint {
	m.nextID++
	return m.nextID
}

// Create inserts a user, enforcing email uniqueness
func (m *MemStore) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.NewConflict("user with this email already exists")
		}
	}
	user.ID = m.id()
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// FindByEmail looks a user up by email
func (m *MemStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NewNotFound("user not found")
}

// FindByID looks a user up by ID
func (m *MemStore) FindByID(_ context.Context, id uint) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NewNotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

// List returns all users, newest first
func (m *MemStore) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

// ListWithWallets returns one page of users with wallets attached
func (m *MemStore) ListWithWallets(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	all, _ := m.List(ctx)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range all {
		if w, ok := m.wallets[all[i].ID]; ok {
			cp := *w
			all[i].Wallet = &cp
		}
	}
	return pageOf(all, page, pageSize), int64(len(all)), nil
}

// UpdateName renames a user
func (m *MemStore) UpdateName(_ context.Context, id uint, fullName string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NewNotFound("user not found")
	}
	u.FullName = fullName
	u.UpdatedAt = m.now()
	cp := *u
	return &cp, nil
}

// Delete removes a user, keeping wallet and ledger
func (m *MemStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.NewNotFound("user not found")
	}
	delete(m.users, id)
	return nil
}

// getOrCreate returns the live wallet and its lock; callers must not hold m.mu
func (m *MemStore) getOrCreate(userID uint) (*domain.Wallet, *sync.Mutex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		now := m.now()
		w = &domain.Wallet{ID: m.id(), UserID: userID, Balance: decimal.Zero, MonthlySaved: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		m.wallets[userID] = w
		m.walletLocks[w.ID] = &sync.Mutex{}
	}
	return w, m.walletLocks[w.ID]
}

// GetOrCreate returns the user's wallet, creating it once
func (m *MemStore) GetOrCreate(_ context.Context, userID uint) (*domain.Wallet, error) {
	w, lock := m.getOrCreate(userID)
	lock.Lock()
	defer lock.Unlock()
	cp := *w
	return &cp, nil
}

// FindByUserID returns the wallet without creating it
func (m *MemStore) FindByUserID(_ context.Context, userID uint) (*domain.Wallet, error) {
	m.mu.Lock()
	w, ok := m.wallets[userID]
	var lock *sync.Mutex
	if ok {
		lock = m.walletLocks[w.ID]
	}
	m.mu.Unlock()
	if !ok {
		return nil, domain.NewNotFound("wallet not found")
	}
	lock.Lock()
	defer lock.Unlock()
	cp := *w
	return &cp, nil
}

// Deposit applies a read-modify-write under the wallet lock
func (m *MemStore) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	w, lock := m.getOrCreate(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, domain.NewPersistence("deposit failed", err)
	}
	balance := w.Balance.Add(amount)
	saved := w.MonthlySaved.Add(amount)
	runtime.Gosched() // Widen the read-modify-write window
	if m.FailDeposit != nil {
		return nil, nil, domain.NewPersistence("deposit failed", m.FailDeposit)
	}

	m.mu.Lock()
	entry := domain.Transaction{
		ID:        m.id(),
		UserID:    userID,
		WalletID:  w.ID,
		Amount:    amount,
		Type:      domain.TransactionTypeDeposit,
		CreatedAt: m.now(),
	}
	m.transactions = append(m.transactions, entry)
	w.Balance = balance
	w.MonthlySaved = saved
	w.UpdatedAt = entry.CreatedAt
	m.mu.Unlock()

	cp := *w
	return &cp, &entry, nil
}

// ListTransactions returns one page of a user's ledger, newest first
func (m *MemStore) ListTransactions(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	return m.ListAll(ctx, repository.TxFilter{UserID: &userID}, page, pageSize)
}

// ListAll returns one page of matching ledger entries, newest first
func (m *MemStore) ListAll(_ context.Context, filter repository.TxFilter, page, pageSize int) ([]domain.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []domain.Transaction{}
	for _, tx := range m.transactions {
		if filter.UserID != nil && tx.UserID != *filter.UserID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, tx)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return pageOf(matched, page, pageSize), int64(len(matched)), nil
}

// LedgerTotals sums the ledger of one wallet
func (m *MemStore) LedgerTotals(_ context.Context, walletID uint) (repository.LedgerTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := repository.LedgerTotals{Total: decimal.Zero}
	for _, tx := range m.transactions {
		if tx.WalletID == walletID {
			totals.Total = totals.Total.Add(tx.Amount)
			totals.Entries++
		}
	}
	return totals, nil
}

// ListWallets returns up to limit wallets with id greater than afterID, in id order
func (m *MemStore) ListWallets(_ context.Context, afterID uint, limit int) ([]domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallets := []domain.Wallet{}
	for _, w := range m.wallets {
		if w.ID > afterID {
			wallets = append(wallets, *w)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].ID < wallets[j].ID })
	if len(wallets) > limit {
		wallets = wallets[:limit]
	}
	return wallets, nil
}

// TransactionCount returns the number of ledger rows
func (m *MemStore) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// SetBalance overwrites a wallet balance without a ledger entry, to
// simulate drift in reconciliation tests
func (m *MemStore) SetBalance(userID uint, balance decimal.Decimal) {
	w, lock := m.getOrCreate(userID)
	lock.Lock()
	defer lock.Unlock()
	w.Balance = balance
}

func pageOf[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
