package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digipiggy/internal/domain"
	"digipiggy/internal/service"
	"digipiggy/internal/testutil"
	"digipiggy/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "api-test-secret-0123456789"

type testServer struct {
	router   *gin.Engine
	store    *testutil.MemStore
	identity *service.Identity
	ledger   *service.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewMemStore()
	identity, err := service.NewIdentity(store, utils.NewTokenManager(testSecret, 7*24*time.Hour), bcrypt.MinCost)
	require.NoError(t, err)
	ledger := service.NewLedger(store, nil)
	router, err := NewRouter(Deps{
		Identity:  identity,
		Ledger:    ledger,
		Directory: service.NewDirectory(store, nil),
	})
	require.NoError(t, err)
	return &testServer{router: router, store: store, identity: identity, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register creates a user through the API and returns its auth response
func (s *testServer) register(t *testing.T, name, email string) AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": name, "email": email, "password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res AuthResponse
	decode(t, w, &res)
	return res
}

// admin provisions an admin account directly and returns its token
func (s *testServer) admin(t *testing.T) AuthResponse {
	t.Helper()
	res, err := s.identity.Provision(context.Background(), service.RegisterInput{
		FullName: "Root", Email: "root@example.com", Password: "Secret123", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	return toAuth(res)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
