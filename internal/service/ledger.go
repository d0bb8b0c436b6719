package service

import (
	"context" // Request-scoped cancellation
	"strconv" // Cache key formatting
	"strings" // Cache key assembly
	"time"    // Timestamps in filters

	"digipiggy/internal/domain"     // Importing domain models
	"digipiggy/internal/metrics"    // Prometheus collectors
	"digipiggy/internal/repository" // Filter and aggregate types
	"digipiggy/internal/utils"      // Cache helpers

	"github.com/shopspring/decimal" // Exact decimal arithmetic
	"github.com/sirupsen/logrus"    // Logging
)

// maxDeposit is the largest amount a decimal(15,2) column can hold
var maxDeposit = decimal.RequireFromString("9999999999999.99")

// sweepBatch is how many wallets ReconcileAll loads per query
const sweepBatch = 200

// Bounds checked before an amount is rescaled. An exponent above 13 always
// exceeds maxDeposit.
const (
	maxAmountExponent  = 13
	minAmountExponent  = -18
	maxCoefficientBits = 128
)

// TransactionPage is one page of ledger entries
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// Reconciliation compares a wallet's stored balance with its ledger
type Reconciliation struct {
	UserID     uint            `json:"user_id"`
	WalletID   uint            `json:"wallet_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Entries    int64           `json:"entries"`
	Consistent bool            `json:"consistent"`
}

// Ledger owns wallets and the deposit ledger
type Ledger struct {
	wallets WalletStore
	cache   *utils.Cache
}

// NewLedger creates the ledger service. cache may be nil.
func NewLedger(wallets WalletStore, cache *utils.Cache) *Ledger {
	return &Ledger{wallets: wallets, cache: cache}
}

// ValidateAmount checks that amount is a positive value in minor-unit precision
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return domain.NewValidation("amount must be a positive number")
	}
	// Round and compare rescale to a common exponent, so bound it first
	exp := amount.Exponent()
	if exp > maxAmountExponent || amount.Coefficient().BitLen() > maxCoefficientBits {
		return domain.NewValidation("amount is too large")
	}
	if exp < minAmountExponent {
		return domain.NewValidation("amount must have at most 2 decimal places")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.NewValidation("amount must have at most 2 decimal places")
	}
	if amount.GreaterThan(maxDeposit) {
		return domain.NewValidation("amount is too large")
	}
	return nil
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on first access
func (s *Ledger) GetOrCreateWallet(ctx context.Context, userID uint) (*domain.Wallet, error) {
	gen, cached := s.generation(ctx, userID)
	cacheKey := utils.WalletKey(userID, gen) // Cache key for this generation
	var wallet domain.Wallet
	if cached {
		if found, err := s.cache.GetCache(ctx, cacheKey, &wallet); err == nil && found {
			return &wallet, nil
		} else if err != nil {
			logrus.WithFields(logrus.Fields{"key": cacheKey, "error": err.Error()}).Warn("Cache read failed")
		}
	}
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		logStoreError("get_or_create_wallet", userID, err)
		return nil, err
	}
	if w.Balance.IsZero() {
		dropAdminPages(ctx, s.cache) // May be a new wallet
	}
	if !cached {
		return w, nil
	}
	if err := s.cache.SetCache(ctx, cacheKey, w); err != nil {
		logrus.WithFields(logrus.Fields{"key": cacheKey, "error": err.Error()}).Warn("Cache write failed")
	}
	return w, nil
}

// Deposit credits amount to the user's wallet and returns the refreshed wallet
func (s *Ledger) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*domain.Wallet, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	wallet, entry, err := s.wallets.Deposit(ctx, userID, amount)
	if err != nil {
		metrics.RecordDeposit(false, 0)
		logStoreError("deposit", userID, err)
		return nil, err
	}
	metrics.RecordDeposit(true, amount.InexactFloat64())
	// Log successful deposit
	logrus.WithFields(logrus.Fields{
		"user_id":        userID,          // User ID
		"wallet_id":      wallet.ID,       // Wallet ID
		"transaction_id": entry.ID,        // Ledger entry ID
		"amount":         amount.String(), // Deposit amount
		"balance":        wallet.Balance.String(),
	}).Info("Deposit transaction")
	s.invalidate(ctx, userID)
	return wallet, nil
}

// ListMyTransactions returns the user's ledger, newest first
func (s *Ledger) ListMyTransactions(ctx context.Context, userID uint, page, pageSize int) (*TransactionPage, error) {
	gen, cached := s.generation(ctx, userID)
	cacheKey := utils.TxHistoryKey(userID, gen, page, pageSize) // Redis cache key
	var hit TransactionPage
	if cached {
		if found, err := s.cache.GetCache(ctx, cacheKey, &hit); err == nil && found {
			return &hit, nil
		}
	}
	txs, total, err := s.wallets.ListTransactions(ctx, userID, page, pageSize)
	if err != nil {
		logStoreError("list_transactions", userID, err)
		return nil, err
	}
	result := newPage(txs, total, page, pageSize)
	if cached {
		_ = s.cache.SetCache(ctx, cacheKey, result) // Cache the result
	}
	return result, nil
}

// ListAllTransactions returns ledger entries across users for admins
func (s *Ledger) ListAllTransactions(ctx context.Context, filter repository.TxFilter, page, pageSize int) (*TransactionPage, error) {
	cacheKey := adminTxKey(filter, page, pageSize)
	var cached TransactionPage
	if found, err := s.cache.GetCache(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}
	txs, total, err := s.wallets.ListAll(ctx, filter, page, pageSize)
	if err != nil {
		logStoreError("list_all_transactions", 0, err)
		return nil, err
	}
	result := newPage(txs, total, page, pageSize)
	_ = s.cache.SetCache(ctx, cacheKey, result)
	return result, nil
}

// ListWallets returns up to limit wallets with IDs above afterID, in ID order
func (s *Ledger) ListWallets(ctx context.Context, afterID uint, limit int) ([]domain.Wallet, error) {
	wallets, err := s.wallets.ListWallets(ctx, afterID, limit)
	if err != nil {
		logStoreError("list_wallets", 0, err)
		return nil, err
	}
	return wallets, nil
}

// Reconcile checks that the stored balance equals the sum of the ledger
func (s *Ledger) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	wallet, err := s.wallets.FindByUserID(ctx, userID)
	if err != nil {
		logStoreError("reconcile", userID, err)
		return nil, err
	}
	totals, err := s.wallets.LedgerTotals(ctx, wallet.ID)
	if err != nil {
		logStoreError("reconcile", userID, err)
		return nil, err
	}
	report := &Reconciliation{
		UserID:     userID,
		WalletID:   wallet.ID,
		Balance:    wallet.Balance,
		LedgerSum:  totals.Total,
		Entries:    totals.Entries,
		Consistent: wallet.Balance.Equal(totals.Total),
	}
	if !report.Consistent {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"wallet_id":  wallet.ID,
			"balance":    wallet.Balance.String(),
			"ledger_sum": totals.Total.String(),
		}).Error("Wallet balance does not match ledger")
	}
	return report, nil
}

// SweepResult summarizes one reconciliation pass over every wallet
type SweepResult struct {
	Checked      int    // Wallets compared
	Inconsistent []uint // User IDs whose balance differs from their ledger
}

// ReconcileAll compares every wallet with its ledger, sweepBatch wallets at
// a time, and publishes the number of mismatches as a metric.
func (s *Ledger) ReconcileAll(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	var afterID uint
	for {
		wallets, err := s.wallets.ListWallets(ctx, afterID, sweepBatch)
		if err != nil {
			logStoreError("reconcile_all", 0, err)
			return nil, err
		}
		for _, w := range wallets {
			totals, err := s.wallets.LedgerTotals(ctx, w.ID)
			if err != nil {
				logStoreError("reconcile_all", w.UserID, err)
				return nil, err
			}
			result.Checked++
			if w.Balance.Equal(totals.Total) {
				continue
			}
			// A deposit may have committed between the two reads; look again
			report, err := s.Reconcile(ctx, w.UserID)
			if err != nil {
				return nil, err
			}
			if !report.Consistent {
				result.Inconsistent = append(result.Inconsistent, w.UserID)
			}
		}
		if len(wallets) < sweepBatch {
			break
		}
		afterID = wallets[len(wallets)-1].ID
	}
	metrics.SetInconsistentWallets(len(result.Inconsistent))
	return result, nil
}

// generation returns the user's current cache generation. ok is false when
// it cannot be read, and the caller then bypasses the cache.
func (s *Ledger) generation(ctx context.Context, userID uint) (int64, bool) {
	gen, err := s.cache.Generation(ctx, utils.UserGenerationKey(userID))
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Cache generation read failed")
		return 0, false
	}
	return gen, true
}

// invalidate retires every cached view of the user's wallet and history,
// and the admin pages that embed the wallet.
func (s *Ledger) invalidate(ctx context.Context, userID uint) {
	err := s.cache.Invalidate(ctx, utils.UserGenerationKey(userID), utils.WalletPrefix(userID), utils.TxHistoryPrefix(userID))
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Wallet cache invalidation failed")
	}
	dropAdminPages(ctx, s.cache)
}

func newPage(txs []domain.Transaction, total int64, page, pageSize int) *TransactionPage {
	return &TransactionPage{
		Transactions: txs,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		TotalPages:   (int(total) + pageSize - 1) / pageSize,
	}
}

func adminTxKey(filter repository.TxFilter, page, pageSize int) string {
	parts := []string{"admin:txs"}
	if filter.UserID != nil {
		parts = append(parts, "user_id="+strconv.FormatUint(uint64(*filter.UserID), 10))
	}
	if filter.Type != "" {
		parts = append(parts, "type="+filter.Type)
	}
	if filter.From != nil {
		parts = append(parts, "from="+filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		parts = append(parts, "to="+filter.To.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
	return strings.Join(parts, ":")
}

func logStoreError(op string, userID uint, err error) {
	if domain.KindOf(err) != domain.KindPersistence {
		return // Expected outcomes are not store failures
	}
	logrus.WithFields(logrus.Fields{
		"op":      op,          // Operation
		"user_id": userID,      // User ID
		"error":   err.Error(), // Underlying error, kept out of responses
	}).Error("Store operation failed")
}
