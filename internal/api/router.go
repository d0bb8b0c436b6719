package api

import (
	"context"  // Health probe
	"net/http" // HTTP status codes
	"time"     // Health timestamp

	"digipiggy/internal/domain"     // Roles
	"digipiggy/internal/metrics"    // Prometheus exposition
	"digipiggy/internal/middleware" // Auth, logging, metrics and rate limiting
	"digipiggy/internal/service"    // Services

	"github.com/gin-gonic/gin"         // Gin web framework
	"github.com/gin-gonic/gin/binding" // Strict JSON decoding
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	Identity       *service.Identity
	Ledger         *service.Ledger
	Directory      *service.Directory
	AuthLimiter    *middleware.RateLimiter     // Per-IP limiter on /api/auth, nil disables it
	DepositLimiter *middleware.RateLimiter     // Per-IP limiter on deposits, nil disables it
	Ping           func(context.Context) error // Database probe for /api/health, optional
	TrustedProxies []string                    // Proxies whose X-Forwarded-For is honoured
}

// NewRouter builds the gin engine with every route
func NewRouter(deps Deps) (*gin.Engine, error) {
	binding.EnableDecoderDisallowUnknownFields = true // Reject unknown JSON fields

	r := gin.New() // Gin router instance
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.BodyLimit(middleware.DefaultBodyLimit))

	r.GET("/metrics", gin.WrapH(metrics.Handler())) // Prometheus scrape endpoint

	apiGroup := r.Group("/api")
	apiGroup.GET("/health", HealthHandler(deps.Ping))

	// Auth routes
	authGroup := apiGroup.Group("/auth")
	if deps.AuthLimiter != nil {
		authGroup.Use(deps.AuthLimiter.Handler())
	}
	authGroup.POST("/register", RegisterHandler(deps.Identity)) // Registration endpoint
	authGroup.POST("/login", LoginHandler(deps.Identity))       // Login endpoint

	jwtAuth := middleware.JWTAuthMiddleware(deps.Identity)
	adminOnly := middleware.AdminOnlyMiddleware()

	// User directory
	apiGroup.GET("/users", ListUsersHandler(deps.Directory)) // Public listing
	usersGroup := apiGroup.Group("/users", jwtAuth)
	usersGroup.GET("/me", MeHandler(deps.Directory))
	usersGroup.GET("/:id", GetUserHandler(deps.Directory))
	usersGroup.PUT("/:id", UpdateUserHandler(deps.Directory))
	usersGroup.POST("", adminOnly, CreateUserHandler(deps.Identity))
	usersGroup.DELETE("/:id", adminOnly, DeleteUserHandler(deps.Directory))

	// Wallet routes (protected by JWT)
	walletGroup := apiGroup.Group("/wallet", jwtAuth)
	walletGroup.GET("/me", GetWalletHandler(deps.Ledger)) // Get wallet endpoint
	depositChain := []gin.HandlerFunc{}
	if deps.DepositLimiter != nil {
		depositChain = append(depositChain, deps.DepositLimiter.Handler())
	}
	walletGroup.POST("/deposit", append(depositChain, DepositHandler(deps.Ledger))...) // Deposit endpoint
	apiGroup.GET("/transactions/mine", jwtAuth, MyTransactionsHandler(deps.Ledger))

	// Admin routes (protected, admin only)
	adminGroup := apiGroup.Group("/admin", jwtAuth, middleware.RequireRoles(domain.RoleAdmin))
	adminGroup.GET("/users", ListUsersWithWalletsHandler(deps.Directory))        // List users endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(deps.Ledger))        // List transactions endpoint
	adminGroup.GET("/wallets", ListWalletsHandler(deps.Ledger))                  // All wallets, keyset paged
	adminGroup.GET("/wallets/:user_id/reconcile", ReconcileHandler(deps.Ledger)) // Ledger consistency check

	return r, nil
}

// HealthHandler reports liveness and, when ping is set, database reachability
func HealthHandler(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC().Format(time.RFC3339)
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "time": now, "error": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": now})
	}
}
