package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// Wallet Model
type Wallet struct {
	ID           uint            `gorm:"primaryKey" json:"id"`                                       // Primary key
	UserID       uint            `gorm:"uniqueIndex;not null" json:"user_id"`                        // Foreign key to User, one wallet per user
	Balance      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`       // Wallet balance
	MonthlySaved decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"monthly_saved"` // Running total of deposits
	CreatedAt    time.Time       `json:"created_at"`                                                 // Creation time
	UpdatedAt    time.Time       `json:"updated_at"`                                                 // Last deposit time
}
