package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/honeynil/SureSend/internal/config"
	"github.com/honeynil/SureSend/internal/handler"
	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/payment"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/infrastructure/sms"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository/memory"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := redis.NewClient(context.Background(), srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type routerEnv struct {
	handler http.Handler
	store   *memory.Store
	tokens  *auth.TokenService
}

func newRouterEnv(t *testing.T, rateLimit int) *routerEnv {
	t.Helper()
	return newRouterEnvWith(t, &config.Config{
		Env:             "test",
		RateLimitMax:    rateLimit,
		RateLimitWindow: time.Minute,
		AllowedOrigins:  []string{"http://localhost:3000"},
	})
}

func newRouterEnvWith(t *testing.T, cfg *config.Config) *routerEnv {
	t.Helper()
	store := memory.NewStore()
	cache := newCache(t)
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	h := handler.NewHandler(handler.Services{
		Auth:          service.NewAuthService(store, tokens, cache, sms.LogSender{}, nil),
		Escrow:        service.NewEscrowService(store, nil, decimal.RequireFromString("0.02")),
		Wallets:       service.NewWalletService(store, payment.NewPaystack("sk_test", "https://paystack.com/pay"), nil),
		Transactions:  service.NewTransactionService(store),
		Notifications: service.NewNotificationService(store),
		Users:         service.NewUserService(store),
	}, validation.New())

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	return &routerEnv{
		handler: SetupRouter(Deps{Config: cfg, Handler: h, Tokens: tokens, Cache: cache, Metrics: metrics}),
		store:   store,
		tokens:  tokens,
	}
}

func (e *routerEnv) token(t *testing.T, username string, typ models.UserType) string {
	t.Helper()
	u := &models.User{Username: username, PhoneNumber: "+23324" + strings.Repeat("1", 7), PasswordHash: "x", FullName: username, UserType: typ}
	if typ == models.UserTypeRider {
		u.PhoneNumber = "+23324" + strings.Repeat("2", 7)
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	require.NoError(t, e.store.Wallets().Create(context.Background(), &models.Wallet{UserID: u.ID, Balance: decimal.Zero}))
	pair, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *routerEnv) serve(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	env := newRouterEnv(t, 0)

	rec := env.serve(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "SureSend API is running", health["message"])
	assert.Equal(t, "test", health["environment"])

	rec = env.serve(http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/escrow")

	rec = env.serve(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = env.serve(http.MethodGet, "/api/v1/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var nf map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nf))
	assert.Equal(t, "Route not found", nf["message"])
	assert.Equal(t, "/api/v1/nowhere", nf["path"])
}

func TestRouter_Auth(t *testing.T) {
	env := newRouterEnv(t, 0)
	userToken := env.token(t, "kwame", models.UserTypeUser)
	riderToken := env.token(t, "yaw", models.UserTypeRider)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"wallet without token", http.MethodGet, "/api/v1/wallet", "", http.StatusUnauthorized},
		{"wallet with token", http.MethodGet, "/api/v1/wallet", userToken, http.StatusOK},
		{"rider cannot create escrow", http.MethodPost, "/api/v1/escrow/create", riderToken, http.StatusForbidden},
		{"rider reads unknown deal", http.MethodGet, "/api/v1/escrow/missing", riderToken, http.StatusNotFound},
		{"notifications", http.MethodGet, "/api/v1/notifications", userToken, http.StatusOK},
		{"stats", http.MethodGet, "/api/v1/transactions/stats", userToken, http.StatusOK},
		{"webhook is public", http.MethodPost, "/api/v1/wallet/webhook/paystack", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.serve(tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	env := newRouterEnv(t, 2)

	for i := 0; i < 2; i++ {
		rec := env.serve(http.MethodGet, "/api/v1/wallet", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.serve(http.MethodGet, "/api/v1/wallet", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")

	// health checks sit outside the limited prefix
	rec = env.serve(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newRouterEnv(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/wallet", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	env := newRouterEnv(t, 2)

	limited := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 8, limited)
}

func TestRouter_RateLimitBehindTrustedProxy(t *testing.T) {
	env := newRouterEnvWith(t, &config.Config{
		Env:             "test",
		RateLimitMax:    1,
		RateLimitWindow: time.Minute,
		TrustProxy:      true,
	})

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, call("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.1"))
	// a different client behind the same proxy has its own budget
	assert.Equal(t, http.StatusUnauthorized, call("203.0.113.2"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newRouterEnv(t, 0)

	rec := env.serve(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
