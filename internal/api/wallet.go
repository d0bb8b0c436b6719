package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Header values

	"digipiggy/internal/middleware" // Claims from context
	"digipiggy/internal/service"    // Ledger service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact decimal amounts
)

// DepositRequest represents a deposit request. Amount accepts a JSON number
// or a numeric string.
type DepositRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"` // Deposit amount
}

// GetWalletHandler returns the authenticated user's wallet, creating it on first access
func GetWalletHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.ClaimsFrom(c) // Set by the JWT middleware
		wallet, err := ledger.GetOrCreateWallet(c.Request.Context(), claims.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toWallet(wallet)) // Return wallet info
	}
}

// DepositHandler allows a user to deposit funds into their wallet
func DepositHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.ClaimsFrom(c) // Set by the JWT middleware
		var req DepositRequest             // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			badRequest(c, "amount must be a positive number")
			return
		}
		wallet, err := ledger.Deposit(c.Request.Context(), claims.UserID, *req.Amount)
		if err != nil {
			respondError(c, err) // 400 on bad amount, 500 after rollback
			return
		}
		// Return the refreshed wallet
		c.JSON(http.StatusOK, toWallet(wallet))
	}
}

// MyTransactionsHandler returns the authenticated user's ledger, newest first.
// The body is the array of entries; paging metadata travels in headers.
func MyTransactionsHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.ClaimsFrom(c) // Set by the JWT middleware
		page, pageSize := pagination(c)
		result, err := ledger.ListMyTransactions(c.Request.Context(), claims.UserID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10)) // Total transactions
		c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))     // Total pages
		c.JSON(http.StatusOK, toTransactions(result.Transactions))
	}
}
