package repository

import (
	"context" // Request-scoped cancellation
	"errors"  // Error matching
	"time"    // Filter bounds

	"digipiggy/internal/domain" // Importing domain models

	drv "github.com/go-sql-driver/mysql" // MySQL error numbers
	"github.com/shopspring/decimal"      // Exact decimal arithmetic
	"gorm.io/gorm"                       // GORM ORM library
	"gorm.io/gorm/clause"                // Locking and upsert clauses
)

// mysqlDeadlock is ER_LOCK_DEADLOCK; InnoDB rolls the victim back and the
// whole unit can be retried.
const mysqlDeadlock = 1213

// depositAttempts bounds deadlock retries for one deposit
const depositAttempts = 3

// TxFilter narrows the admin transaction listing
type TxFilter struct {
	UserID *uint      // Owner filter
	Type   string     // Transaction type filter
	From   *time.Time // Inclusive lower bound on created_at
	To     *time.Time // Inclusive upper bound on created_at
}

// LedgerTotals is the aggregate of a wallet's transactions
type LedgerTotals struct {
	Total   decimal.Decimal // Sum of amounts
	Entries int64           // Number of rows
}

// WalletRepository persists wallets and the deposit ledger in MySQL
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a WalletRepository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// ensureWallet inserts an empty wallet unless the user already has one.
// The unique index on user_id makes concurrent calls collapse to one row.
func ensureWallet(tx *gorm.DB, userID uint) error {
	wallet := domain.Wallet{UserID: userID, Balance: decimal.Zero, MonthlySaved: decimal.Zero}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&wallet).Error
}

// GetOrCreate returns the user's wallet, creating it on first access
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error) {
	db := r.db.WithContext(ctx)
	var wallet domain.Wallet
	err := db.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewPersistence("failed to fetch wallet", err)
	}
	if err := ensureWallet(db, userID); err != nil {
		return nil, domain.NewPersistence("failed to create wallet", err)
	}
	// Re-read so a concurrent creator's row is returned too
	if err := db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, domain.NewPersistence("failed to fetch wallet", err)
	}
	return &wallet, nil
}

// Deposit credits amount to the user's wallet and appends a deposit entry.
// The wallet upsert, row lock, balance update, ledger insert and re-read run
// in one database transaction; on any error nothing is committed.
func (r *WalletRepository) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	var (
		wallet *domain.Wallet
		entry  *domain.Transaction
		err    error
	)
	for attempt := 1; attempt <= depositAttempts; attempt++ {
		wallet, entry, err = r.deposit(ctx, userID, amount)
		if err == nil || !isDeadlock(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, nil, domain.NewPersistence("deposit failed", err)
	}
	return wallet, entry, nil
}

func (r *WalletRepository) deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	var fresh domain.Wallet
	var entry domain.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureWallet(tx, userID); err != nil {
			return err // Return error to rollback
		}
		var wallet domain.Wallet
		// Lock the wallet row so concurrent deposits serialize here
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			return err
		}
		// Update balance and running total
		if err := tx.Model(&wallet).Updates(map[string]any{
			"balance":       wallet.Balance.Add(amount),
			"monthly_saved": wallet.MonthlySaved.Add(amount),
		}).Error; err != nil {
			return err
		}
		// Create transaction record
		entry = domain.Transaction{
			UserID:   userID,                        // Owner
			WalletID: wallet.ID,                     // Wallet being credited
			Amount:   amount,                        // Deposit amount
			Type:     domain.TransactionTypeDeposit, // Transaction type
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.First(&fresh, wallet.ID).Error // Refreshed state inside the same unit
	})
	if err != nil {
		return nil, nil, err
	}
	return &fresh, &entry, nil
}

// ListTransactions returns one page of a user's ledger, newest first
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	return r.listTransactions(ctx, TxFilter{UserID: &userID}, page, pageSize)
}

// ListAll returns one page of all ledger entries matching filter
func (r *WalletRepository) ListAll(ctx context.Context, filter TxFilter, page, pageSize int) ([]domain.Transaction, int64, error) {
	return r.listTransactions(ctx, filter, page, pageSize)
}

func (r *WalletRepository) listTransactions(ctx context.Context, filter TxFilter, page, pageSize int) ([]domain.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID) // Filter by user ID
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type) // Filter by transaction type
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From) // Filter by start date
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To) // Filter by end date
	}
	var total int64 // Total transaction count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewPersistence("failed to count transactions", err)
	}
	txs := []domain.Transaction{} // Empty slice serializes as []
	err := query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, domain.NewPersistence("failed to fetch transactions", err)
	}
	return txs, total, nil
}

// FindByUserID returns the user's wallet without creating one
func (r *WalletRepository) FindByUserID(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("wallet not found")
	}
	if err != nil {
		return nil, domain.NewPersistence("failed to fetch wallet", err)
	}
	return &wallet, nil
}

// LedgerTotals sums the ledger of one wallet
func (r *WalletRepository) LedgerTotals(ctx context.Context, walletID uint) (LedgerTotals, error) {
	var totals LedgerTotals
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entries").
		Where("wallet_id = ?", walletID).
		Scan(&totals).Error
	if err != nil {
		return LedgerTotals{}, domain.NewPersistence("failed to sum ledger", err)
	}
	return totals, nil
}

// ListWallets returns up to limit wallets with id greater than afterID, in id order
func (r *WalletRepository) ListWallets(ctx context.Context, afterID uint, limit int) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	err := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id").Limit(limit).Find(&wallets).Error
	if err != nil {
		return nil, domain.NewPersistence("failed to list wallets", err)
	}
	return wallets, nil
}

func isDeadlock(err error) bool {
	var myErr *drv.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDeadlock
}
