package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"digipiggy/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	drv "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletColumns = []string{"id", "user_id", "balance", "monthly_saved", "created_at", "updated_at"}

const (
	upsertWalletSQL = "INSERT INTO `wallets` .* ON DUPLICATE KEY UPDATE"
	lockWalletSQL   = "SELECT \\* FROM `wallets` WHERE user_id = \\? .*FOR UPDATE"
	updateWalletSQL = "UPDATE `wallets` SET"
	insertTxSQL     = "INSERT INTO `transactions`"
	rereadWalletSQL = "SELECT \\* FROM `wallets` WHERE `wallets`.`id` = \\?"
)

func TestWalletRepository_Deposit(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(upsertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockWalletSQL).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "10.00", "10.00", now, now))
	mock.ExpectExec(updateWalletSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(rereadWalletSQL).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "15.00", "15.00", now, now))
	mock.ExpectCommit()

	wallet, entry, err := repo.Deposit(context.Background(), 7, decimal.RequireFromString("5"))
	require.NoError(t, err)

	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("15")))
	assert.True(t, wallet.MonthlySaved.Equal(decimal.RequireFromString("15")))
	assert.Equal(t, uint(11), entry.ID)
	assert.Equal(t, uint(3), entry.WalletID)
	assert.Equal(t, uint(7), entry.UserID)
	assert.Equal(t, domain.TransactionTypeDeposit, entry.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_Deposit_RollsBackOnLedgerFailure(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(upsertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockWalletSQL).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "10.00", "10.00", now, now))
	mock.ExpectExec(updateWalletSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	wallet, entry, err := repo.Deposit(context.Background(), 7, decimal.RequireFromString("5"))

	assert.Nil(t, wallet)
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, "deposit failed", domain.PublicMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_Deposit_RetriesDeadlock(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(upsertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockWalletSQL).WillReturnError(&drv.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(upsertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockWalletSQL).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "0.00", "0.00", now, now))
	mock.ExpectExec(updateWalletSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(rereadWalletSQL).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "7.00", "7.00", now, now))
	mock.ExpectCommit()

	wallet, _, err := repo.Deposit(context.Background(), 7, decimal.RequireFromString("7"))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("7")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetOrCreate_Existing(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `wallets` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "4.50", "4.50", now, now))

	wallet, err := repo.GetOrCreate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(3), wallet.ID)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("4.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetOrCreate_Creates(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `wallets` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows(walletColumns))
	mock.ExpectExec(upsertWalletSQL).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("SELECT \\* FROM `wallets` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 7, "0.00", "0.00", now, now))

	wallet, err := repo.GetOrCreate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), wallet.UserID)
	assert.True(t, wallet.Balance.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetOrCreate_StoreError(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)

	mock.ExpectQuery("SELECT \\* FROM `wallets`").WillReturnError(errors.New("connection refused"))

	_, err := repo.GetOrCreate(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotContains(t, domain.PublicMessage(err), "connection refused")
}

func TestWalletRepository_ListTransactions(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE user_id = \\? ORDER BY created_at desc,id desc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "wallet_id", "amount", "type", "created_at"}).
			AddRow(2, 7, 3, "5.00", "deposit", now).
			AddRow(1, 7, 3, "5.00", "deposit", now.Add(-time.Minute)))

	txs, total, err := repo.ListTransactions(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txs, 2)
	assert.Equal(t, uint(2), txs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_ListAll_Filters(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions` WHERE type = \\? AND created_at >= \\?").
		WithArgs("deposit", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE type = \\? AND created_at >= \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	txs, total, err := repo.ListAll(context.Background(), TxFilter{Type: "deposit", From: &from}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_LedgerTotals(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) AS total, COUNT\\(\\*\\) AS entries FROM `transactions` WHERE wallet_id = \\?").
		WithArgs(uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "entries"}).AddRow("10.00", 2))

	totals, err := repo.LedgerTotals(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, int64(2), totals.Entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_ListWallets(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewWalletRepository(gdb)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `wallets` WHERE id > \\? ORDER BY id LIMIT").
		WillReturnRows(sqlmock.NewRows(walletColumns).
			AddRow(4, 9, "1.00", "1.00", now, now).
			AddRow(5, 10, "2.00", "2.00", now, now))

	wallets, err := repo.ListWallets(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, uint(10), wallets[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
