package utils

import (
	"errors"  // Error values
	"strconv" // Subject formatting
	"time"    // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid or expired token")

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"` // Custom claim for user ID
	Email                string `json:"email"`   // Email at issue time
	Role                 string `json:"role"`    // Role at issue time
	jwt.RegisteredClaims        // Standard JWT claims
}

// TokenManager signs and verifies HS256 tokens with a process-wide secret
type TokenManager struct {
	secret []byte           // Signing secret
	ttl    time.Duration    // Token lifetime
	now    func() time.Time // Clock used for issue and verification
}

// NewTokenManager creates a TokenManager using the wall clock
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the manager that reads time from now
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *m
	cp.now = now
	return &cp
}

// TTL returns the lifetime of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// GenerateJWT creates a signed token for the given identity
func (m *TokenManager) GenerateJWT(userID uint, email, role string) (string, error) {
	issuedAt := m.now() // Single clock read so iat and exp agree
	claims := Claims{
		UserID: userID, // Custom claim for user ID
		Email:  email,  // Custom claim for email
		Role:   role,   // Custom claim for role
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),  // Subject is the user ID
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(issuedAt),            // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString(m.secret)                        // Sign the token with the secret
}

// ParseJWT parses and validates a token string. Expiry is mandatory and
// checked against the manager's clock.
func (m *TokenManager) ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil // Return the secret key for validation
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), // Reject alg switching
		jwt.WithExpirationRequired(),                                 // Tokens without exp are invalid
		jwt.WithTimeFunc(m.now),                                      // Verify against injected clock
	)
	// Check for parsing errors
	if err != nil {
		return nil, ErrInvalidToken
	}
	// Validate token and extract claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
