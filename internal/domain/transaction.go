package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// TransactionTypeDeposit is the only ledger entry type currently written
const TransactionTypeDeposit = "deposit"

// Transaction Model. Rows are append-only.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                                          // Primary key
	UserID    uint            `gorm:"index;not null" json:"user_id"`                                 // Owner of the wallet
	WalletID  uint            `gorm:"index:idx_wallet_created,priority:1;not null" json:"wallet_id"` // Foreign key to Wallet
	Wallet    *Wallet         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`       // Owning wallet
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`                     // Amount of the transaction
	Type      string          `gorm:"size:16;not null" json:"type"`                                  // Transaction type: deposit
	CreatedAt time.Time       `gorm:"index:idx_wallet_created,priority:2" json:"created_at"`         // Server-assigned creation time
}
