package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Date filters

	"digipiggy/internal/repository" // Filter type
	"digipiggy/internal/service"    // Ledger and directory services

	"github.com/gin-gonic/gin" // Gin web framework
)

// ListUsersWithWalletsHandler returns users with their wallet info, paginated
func ListUsersWithWalletsHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pagination(c)
		result, err := directory.ListWithWallets(c.Request.Context(), page, pageSize)
		if err != nil {
			respondError(c, err) // Return on error
			return
		}
		c.JSON(http.StatusOK, toUserPage(result)) // Return the response
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, or date
func ListTransactionsHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, ok := txFilter(c)
		if !ok {
			return // Response already written
		}
		page, pageSize := pagination(c)
		result, err := ledger.ListAllTransactions(c.Request.Context(), filter, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTransactionPage(result))
	}
}

// ListWalletsHandler returns wallets in ID order. Pages are keyed by
// after_id, the last wallet ID of the previous page.
func ListWalletsHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var afterID uint
		if v := c.Query("after_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				badRequest(c, "invalid after_id")
				return
			}
			afterID = uint(id)
		}
		limit := defaultPageSize
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
				limit = n
			}
		}
		wallets, err := ledger.ListWallets(c.Request.Context(), afterID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toWalletList(wallets, limit))
	}
}

// ReconcileHandler compares a user's wallet balance with the ledger sum
func ReconcileHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c, "user_id")
		if !ok {
			badRequest(c, "invalid user id")
			return
		}
		report, err := ledger.Reconcile(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err) // 404 when the user never had a wallet
			return
		}
		c.JSON(http.StatusOK, toReconcile(report))
	}
}

// txFilter reads user_id, type, from and to. Dates are RFC 3339 or
// YYYY-MM-DD; a bare "to" date covers the whole day.
func txFilter(c *gin.Context) (repository.TxFilter, bool) {
	var filter repository.TxFilter
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(c, "invalid user_id")
			return filter, false
		}
		uid := uint(id)
		filter.UserID = &uid // Filter by user ID
	}
	filter.Type = c.Query("type") // Filter by transaction type
	if v := c.Query("from"); v != "" {
		from, _, err := parseDate(v)
		if err != nil {
			badRequest(c, "invalid from date")
			return filter, false
		}
		filter.From = &from // Filter by start date
	}
	if v := c.Query("to"); v != "" {
		to, dateOnly, err := parseDate(v)
		if err != nil {
			badRequest(c, "invalid to date")
			return filter, false
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to // Filter by end date
	}
	return filter, true
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, true, err
}
