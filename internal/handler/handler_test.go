package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/payment"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/infrastructure/sms"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository/memory"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
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

const paystackSecret = "sk_test_handler"

var phoneSeq atomic.Int64

type testEnv struct {
	store  *memory.Store
	tokens *auth.TokenService
	router *mux.Router
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	cache := newCache(t)
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	h := NewHandler(Services{
		Auth:          service.NewAuthService(store, tokens, cache, sms.LogSender{}, nil),
		Escrow:        service.NewEscrowService(store, nil, decimal.RequireFromString("0.02")),
		Wallets:       service.NewWalletService(store, payment.NewPaystack(paystackSecret, "https://paystack.com/pay"), nil),
		Transactions:  service.NewTransactionService(store),
		Notifications: service.NewNotificationService(store),
		Users:         service.NewUserService(store),
	}, validation.New())

	r := mux.NewRouter()
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/wallet/webhook/paystack", h.PaystackWebhook).Methods(http.MethodPost)

	p := r.NewRoute().Subrouter()
	p.Use(auth.AuthMiddleware(tokens, cache))
	p.HandleFunc("/escrow/create", h.CreateEscrow).Methods(http.MethodPost)
	p.HandleFunc("/escrow/{id}", h.GetEscrowDetails).Methods(http.MethodGet)
	p.HandleFunc("/escrow/{id}/confirm-delivery", h.ConfirmDelivery).Methods(http.MethodPost)
	p.HandleFunc("/escrow/{id}/cancel", h.CancelTransaction).Methods(http.MethodPost)
	p.HandleFunc("/wallet", h.GetWallet).Methods(http.MethodGet)
	p.HandleFunc("/wallet/transactions", h.GetWalletTransactions).Methods(http.MethodGet)
	p.HandleFunc("/wallet/transfer", h.Transfer).Methods(http.MethodPost)
	p.HandleFunc("/transactions/search-users", h.SearchUsers).Methods(http.MethodGet)
	p.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)
	p.HandleFunc("/users/profile", h.GetProfile).Methods(http.MethodGet)
	p.HandleFunc("/users/profile", h.UpdateProfile).Methods(http.MethodPut)

	return &testEnv{store: store, tokens: tokens, router: r}
}

// seedUser stores an active account with an empty wallet and returns it
// together with an access token.
func (e *testEnv) seedUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	u := &models.User{
		Username:     username,
		PhoneNumber:  fmt.Sprintf("+23320%07d", phoneSeq.Add(1)),
		PasswordHash: "x",
		FullName:     "Test " + username,
		UserType:     models.UserTypeUser,
	}
	require.NoError(t, e.store.Users().Create(ctx, u))
	require.NoError(t, e.store.Wallets().Create(ctx, &models.Wallet{UserID: u.ID, Balance: decimal.Zero}))

	pair, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return u, pair.AccessToken
}

// fund credits the wallet through a signed gateway webhook.
func (e *testEnv) fund(t *testing.T, userID string, minor int64) {
	t.Helper()
	ref := models.NewFundingRef(userID, time.Now())
	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":%d,"status":"success"}}`, ref, minor))

	req := httptest.NewRequest(http.MethodPost, "/wallet/webhook/paystack", bytes.NewReader(payload))
	req.Header.Set(paystackSignatureHeader, payment.Sign(paystackSecret, payload))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"insufficient funds", fmt.Errorf("debit: %w", pkgerrors.ErrInsufficientFunds), http.StatusBadRequest, "Insufficient balance"},
		{"not found", pkgerrors.ErrTransactionNotFound, http.StatusNotFound, "Transaction not found or access denied"},
		{"conflict", pkgerrors.ErrInvalidTransition, http.StatusConflict, "Transaction is not in a valid state for this operation"},
		{"inactive", pkgerrors.ErrUserInactive, http.StatusForbidden, "Account is deactivated. Please contact support."},
		{"bad otp", pkgerrors.ErrOTPInvalid, http.StatusUnauthorized, "Invalid OTP code"},
		{"throttled", pkgerrors.ErrOTPThrottled, http.StatusTooManyRequests, "An OTP was sent recently. Please wait before requesting another."},
		{"validation", pkgerrors.NewValidationError("amount", "Amount is required"), http.StatusBadRequest, "Validation error"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "Something failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "Something failed")

			assert.Equal(t, tt.status, rec.Code)
			var resp response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.message, resp.Message)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestHandler_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username":    "a!",
		"phoneNumber": "12345",
		"password":    "short",
		"fullName":    "Kofi Boateng",
		"userType":    "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation error", resp.Message)
	assert.Contains(t, resp.Errors, "User type must be either user or rider")
	assert.Contains(t, resp.Errors, "Phone number must be in format +233XXXXXXXXX or 0XXXXXXXXX")
	assert.Contains(t, resp.Errors, "Password must be at least 8 characters long")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Contains(t, raw.Body.String(), "Request body must be valid JSON")
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"username":    "kofi_b",
		"phoneNumber": "+233201112233",
		"password":    "Secret123!",
		"fullName":    "Kofi Boateng",
		"userType":    "user",
	}

	rec, resp := env.do(t, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		RequiresOTP bool `json:"requiresOTP"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "kofi_b", data.User.Username)
	assert.True(t, data.RequiresOTP)

	rec, resp = env.do(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username or phone number already exists", resp.Message)

	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"identifier": "kofi_b", "password": "Secret123!"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, resp = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"identifier": "kofi_b", "password": "Wrong123!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", resp.Message)
}

func TestHandler_EscrowFlow(t *testing.T) {
	env := newTestEnv(t)
	buyer, buyerToken := env.seedUser(t, "kwame")
	seller, sellerToken := env.seedUser(t, "ama")
	env.fund(t, buyer.ID, 100000)

	rec, resp := env.do(t, http.MethodPost, "/escrow/create", buyerToken, map[string]any{
		"sellerId":      seller.ID,
		"amount":        500,
		"description":   "Used laptop",
		"paymentMethod": "wallet",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Transaction models.Transaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	deal := created.Transaction
	assert.Equal(t, models.StatusInEscrow, deal.Status)
	assert.True(t, deal.Commission.Equal(decimal.NewFromInt(10)))

	rec, _ = env.do(t, http.MethodGet, "/escrow/"+deal.ID, sellerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/escrow/"+deal.ID+"/confirm-delivery", sellerToken, map[string]any{"confirmed": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Transaction not found or access denied", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/escrow/"+deal.ID+"/confirm-delivery", buyerToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "Confirmation status is required")

	rec, resp = env.do(t, http.MethodPost, "/escrow/"+deal.ID+"/confirm-delivery", buyerToken, map[string]any{"confirmed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Delivery confirmed. Funds released to seller.", resp.Message)

	rec, _ = env.do(t, http.MethodPost, "/escrow/"+deal.ID+"/cancel", buyerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/wallet", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		Wallet struct {
			Balance decimal.Decimal `json:"balance"`
		} `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	assert.True(t, wallet.Wallet.Balance.Equal(decimal.NewFromInt(490)), wallet.Wallet.Balance.String())
}

func TestHandler_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	_, buyerToken := env.seedUser(t, "kwame")
	seller, _ := env.seedUser(t, "ama")

	rec, resp := env.do(t, http.MethodPost, "/escrow/create", buyerToken, map[string]any{
		"sellerId":      seller.ID,
		"amount":        "50.00",
		"description":   "Phone case",
		"paymentMethod": "wallet",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient balance", resp.Message)
}

func TestHandler_Transfer(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.seedUser(t, "alice")
	_, bobToken := env.seedUser(t, "bob")
	env.fund(t, alice.ID, 2500)

	rec, resp := env.do(t, http.MethodPost, "/wallet/transfer", aliceToken, map[string]any{"recipientUsername": "bob", "amount": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Transfer successful", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/wallet/transfer", aliceToken, map[string]any{"recipientUsername": "alice", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot transfer to yourself", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/wallet/transfer", aliceToken, map[string]any{"recipientUsername": "nobody", "amount": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Recipient not found", resp.Message)

	rec, resp = env.do(t, http.MethodGet, "/wallet/transactions?type=credit", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Transactions []models.WalletTransaction `json:"transactions"`
		Pagination   struct {
			Total   int  `json:"total"`
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &hist))
	require.Len(t, hist.Transactions, 1)
	assert.Equal(t, 1, hist.Pagination.Total)
	assert.Equal(t, "Transfer from @alice", hist.Transactions[0].Description)

	rec, resp = env.do(t, http.MethodGet, "/wallet/transactions?startDate=yesterday", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation error", resp.Message)
}

func TestHandler_PaystackWebhook(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedUser(t, "kwame")
	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":1000,"status":"success"}}`,
		models.NewFundingRef(user.ID, time.Now())))

	tests := []struct {
		name      string
		payload   []byte
		signature string
		status    int
		body      string
	}{
		{"bad signature", payload, "deadbeef", http.StatusBadRequest, "Invalid signature"},
		{"bad reference", []byte(`{"event":"charge.success","data":{"reference":"nope","amount":1000,"status":"success"}}`), "", http.StatusBadRequest, "Invalid reference"},
		{"ok", payload, "", http.StatusOK, "Webhook received"},
		{"replay", payload, "", http.StatusOK, "Webhook received"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.signature
			if sig == "" {
				sig = payment.Sign(paystackSecret, tt.payload)
			}
			req := httptest.NewRequest(http.MethodPost, "/wallet/webhook/paystack", bytes.NewReader(tt.payload))
			req.Header.Set(paystackSignatureHeader, sig)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}

	w, err := env.store.Wallets().GetOverview(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10)), w.Balance.String())
}

func TestHandler_ReadEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "kwame")
	env.seedUser(t, "kwabena")

	rec, resp := env.do(t, http.MethodGet, "/transactions/search-users?search=k", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Search query must be at least 2 characters", resp.Message)

	rec, resp = env.do(t, http.MethodGet, "/transactions/search-users?search=kwab", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), "kwabena")
	assert.NotContains(t, string(resp.Data), `"kwame"`)

	rec, _ = env.do(t, http.MethodGet, "/notifications?unreadOnly=true", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/users/profile", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No fields to update", resp.Message)

	rec, _ = env.do(t, http.MethodPut, "/users/profile", token, map[string]any{"fullName": "Kwame Mensah"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, resp = env.do(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), "Kwame Mensah")
}

func TestHandler_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token provided", resp.Message)
}
