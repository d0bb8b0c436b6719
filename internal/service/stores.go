package service

import (
	"context" // Request-scoped cancellation

	"digipiggy/internal/domain"     // Importing domain models
	"digipiggy/internal/repository" // Filter and aggregate types

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// UserStore is the persistence the identity and directory services need.
// Implementations return *domain.Error values.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ListWithWallets(ctx context.Context, page, pageSize int) ([]domain.User, int64, error)
	UpdateName(ctx context.Context, id uint, fullName string) (*domain.User, error)
	Delete(ctx context.Context, id uint) error
}

// WalletStore is the persistence the ledger service needs. Deposit must be
// atomic and serialized per wallet.
type WalletStore interface {
	GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error)
	FindByUserID(ctx context.Context, userID uint) (*domain.Wallet, error)
	Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error)
	ListAll(ctx context.Context, filter repository.TxFilter, page, pageSize int) ([]domain.Transaction, int64, error)
	LedgerTotals(ctx context.Context, walletID uint) (repository.LedgerTotals, error)
	ListWallets(ctx context.Context, afterID uint, limit int) ([]domain.Wallet, error)
}

var (
	_ UserStore   = (*repository.UserRepository)(nil)
	_ WalletStore = (*repository.WalletRepository)(nil)
)
