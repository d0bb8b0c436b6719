package api

import (
	"time" // Timestamps

	"digipiggy/internal/domain"  // Importing domain models
	"digipiggy/internal/service" // Page types

	"github.com/shopspring/decimal" // Amount formatting
)

// UserResponse is the public view of a user
type UserResponse struct {
	ID        uint      `json:"id"`         // User ID
	FullName  string    `json:"full_name"`  // Display name
	Email     string    `json:"email"`      // Login email
	Role      string    `json:"role"`       // User role
	CreatedAt time.Time `json:"created_at"` // Registration time
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	ID       uint   `json:"id"`        // Subject ID
	FullName string `json:"full_name"` // Display name
	Email    string `json:"email"`     // Login email
	Role     string `json:"role"`      // User role
	Token    string `json:"token"`     // JWT token
}

// WalletResponse is a wallet with amounts rendered to two decimals
type WalletResponse struct {
	ID           uint      `json:"id"`            // Wallet ID
	UserID       uint      `json:"user_id"`       // Owner
	Balance      string    `json:"balance"`       // Current balance
	MonthlySaved string    `json:"monthly_saved"` // Running total of deposits
	CreatedAt    time.Time `json:"created_at"`    // Creation time
	UpdatedAt    time.Time `json:"updated_at"`    // Last deposit time
}

// WalletListResponse is one keyset page of wallets for admins
type WalletListResponse struct {
	Wallets     []WalletResponse `json:"wallets"`       // Wallets in ID order
	NextAfterID *uint            `json:"next_after_id"` // Cursor for the next page, null on the last one
}

// TransactionResponse is one ledger entry
type TransactionResponse struct {
	ID        uint      `json:"id"`         // Transaction ID
	UserID    uint      `json:"user_id"`    // Owner
	WalletID  uint      `json:"wallet_id"`  // Wallet credited
	Amount    string    `json:"amount"`     // Amount of the transaction
	Type      string    `json:"type"`       // Transaction type
	CreatedAt time.Time `json:"created_at"` // Server-assigned time
}

// TransactionPageResponse is one page of ledger entries
type TransactionPageResponse struct {
	Transactions []TransactionResponse `json:"transactions"` // List of transactions
	Page         int                   `json:"page"`         // Current page
	PageSize     int                   `json:"page_size"`    // Page size
	Total        int64                 `json:"total"`        // Total transactions
	TotalPages   int                   `json:"total_pages"`  // Total pages
}

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID       uint            `json:"id"`        // User ID
	FullName string          `json:"full_name"` // Display name
	Email    string          `json:"email"`     // Login email
	Role     string          `json:"role"`      // User role
	Wallet   *WalletResponse `json:"wallet"`    // Associated wallet, null before first access
}

// UserPageResponse is one page of users for admins
type UserPageResponse struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
}

// ReconcileResponse reports whether a wallet agrees with its ledger
type ReconcileResponse struct {
	UserID     uint   `json:"user_id"`    // Owner
	WalletID   uint   `json:"wallet_id"`  // Wallet checked
	Balance    string `json:"balance"`    // Stored balance
	LedgerSum  string `json:"ledger_sum"` // Sum of ledger amounts
	Entries    int64  `json:"entries"`    // Ledger rows
	Consistent bool   `json:"consistent"` // Balance equals ledger sum
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toUser(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

func toUsers(users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = toUser(&users[i])
	}
	return resp
}

func toAuth(res *service.AuthResult) AuthResponse {
	return AuthResponse{ID: res.User.ID, FullName: res.User.FullName, Email: res.User.Email, Role: res.User.Role, Token: res.Token}
}

func toWalletList(wallets []domain.Wallet, limit int) WalletListResponse {
	res := WalletListResponse{Wallets: make([]WalletResponse, len(wallets))}
	for i := range wallets {
		res.Wallets[i] = *toWallet(&wallets[i])
	}
	if len(wallets) == limit && limit > 0 {
		next := wallets[len(wallets)-1].ID
		res.NextAfterID = &next
	}
	return res
}

func toWallet(w *domain.Wallet) *WalletResponse {
	if w == nil {
		return nil
	}
	return &WalletResponse{
		ID:           w.ID,
		UserID:       w.UserID,
		Balance:      money(w.Balance),
		MonthlySaved: money(w.MonthlySaved),
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

func toTransactions(txs []domain.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = TransactionResponse{
			ID:        tx.ID,
			UserID:    tx.UserID,
			WalletID:  tx.WalletID,
			Amount:    money(tx.Amount),
			Type:      tx.Type,
			CreatedAt: tx.CreatedAt,
		}
	}
	return resp
}

func toTransactionPage(p *service.TransactionPage) TransactionPageResponse {
	return TransactionPageResponse{
		Transactions: toTransactions(p.Transactions),
		Page:         p.Page,
		PageSize:     p.PageSize,
		Total:        p.Total,
		TotalPages:   p.TotalPages,
	}
}

func toUserPage(p *service.UserPage) UserPageResponse {
	users := make([]UserAdminResponse, len(p.Users))
	// Map users to response format
	for i, u := range p.Users {
		users[i] = UserAdminResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role, Wallet: toWallet(u.Wallet)}
	}
	return UserPageResponse{Users: users, Page: p.Page, PageSize: p.PageSize, Total: p.Total, TotalPages: p.TotalPages}
}

func toReconcile(r *service.Reconciliation) ReconcileResponse {
	return ReconcileResponse{
		UserID:     r.UserID,
		WalletID:   r.WalletID,
		Balance:    money(r.Balance),
		LedgerSum:  money(r.LedgerSum),
		Entries:    r.Entries,
		Consistent: r.Consistent,
	}
}
