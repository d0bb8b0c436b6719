package service

import (
	"context" // Request-scoped cancellation
	"errors"  // Error matching
	"strings" // Input normalization

	"digipiggy/internal/domain" // Importing domain models
	"digipiggy/internal/utils"  // JWT and cache utilities

	"github.com/go-playground/validator/v10" // Email validation
	"github.com/sirupsen/logrus"             // Logging
	"golang.org/x/crypto/bcrypt"             // Password hashing
)

const (
	minPasswordLen = 8  // Shortest accepted password
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// errInvalidCredentials is shared by every login failure so callers cannot
// tell an unknown email from a wrong password.
var errInvalidCredentials = domain.NewAuth("invalid email or password")

var validate = validator.New()

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     string // Empty means user; honoured only by Provision
}

// AuthResult is an identity plus a freshly issued bearer token
type AuthResult struct {
	User  *domain.User
	Token string
}

// Identity registers users, checks credentials and verifies tokens
type Identity struct {
	users     UserStore
	tokens    *utils.TokenManager
	cost      int
	dummyHash []byte
	cache     *utils.Cache // Admin user pages to retire on sign-up, may be nil
}

// NewIdentity creates the identity service. cost is the bcrypt cost factor.
func NewIdentity(users UserStore, tokens *utils.TokenManager, cost int) (*Identity, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("digipiggy-timing-equalizer"), cost)
	if err != nil {
		return nil, err
	}
	return &Identity{users: users, tokens: tokens, cost: cost, dummyHash: dummy}, nil
}

// WithCache returns a copy of the service that retires the cached admin
// user pages whenever an account is created.
func (s *Identity) WithCache(cache *utils.Cache) *Identity {
	cp := *s
	cp.cache = cache
	return &cp
}

// Register creates a regular user and logs them in. Any requested role
// other than user is rejected.
func (s *Identity) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Role != "" && in.Role != domain.RoleUser {
		return nil, domain.NewValidation("role cannot be chosen at registration")
	}
	in.Role = domain.RoleUser
	return s.create(ctx, in)
}

// Provision creates a user with an explicit role. Callers must already be
// authorized as admin.
func (s *Identity) Provision(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !domain.ValidRole(in.Role) {
		return nil, domain.NewValidation("role must be user or admin")
	}
	return s.create(ctx, in)
}

func (s *Identity) create(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)
	if fullName == "" || email == "" || in.Password == "" {
		return nil, domain.NewValidation("full_name, email and password are required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, domain.NewValidation("email is not valid")
	}
	if len(in.Password) < minPasswordLen || len(in.Password) > maxPasswordLen {
		return nil, domain.NewValidation("password must be 8-72 characters")
	}
	// Hash the password and create the user
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		logrus.WithError(err).Error("Failed to hash password")
		return nil, domain.NewPersistence("failed to register user", err)
	}
	user := &domain.User{FullName: fullName, Email: email, PasswordHash: string(hash), Role: in.Role}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			logrus.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Error("Register failed")
		}
		return nil, err
	}
	dropAdminPages(ctx, s.cache)
	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,   // New user ID
		"role":    user.Role, // Granted role
	}).Info("User registered")
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and issues a token
func (s *Identity) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidation("email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, errInvalidCredentials
	}
	if err != nil {
		logrus.WithError(err).Error("Login lookup failed")
		return nil, err
	}
	// Compare provided password with stored hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// VerifyToken decodes a bearer token. It performs no I/O.
func (s *Identity) VerifyToken(token string) (*utils.Claims, error) {
	if token == "" {
		return nil, domain.NewAuth("missing token")
	}
	claims, err := s.tokens.ParseJWT(token)
	if err != nil {
		return nil, domain.NewAuth("invalid or expired token")
	}
	return claims, nil
}

// Authorize checks the subject's role against the allowed set
func Authorize(claims *utils.Claims, roles ...string) error {
	if claims == nil {
		return domain.NewAuth("missing token")
	}
	for _, role := range roles {
		if claims.Role == role {
			return nil
		}
	}
	return domain.NewAuthz("access denied")
}

func (s *Identity) issue(user *domain.User) (string, error) {
	token, err := s.tokens.GenerateJWT(user.ID, user.Email, user.Role)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate token")
		return "", domain.NewPersistence("failed to generate token", err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
