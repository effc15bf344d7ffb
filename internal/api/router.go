package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/honeynil/SureSend/internal/config"
	"github.com/honeynil/SureSend/internal/handler"
	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/unrolled/secure"
)

type Deps struct {
	Config  *config.Config
	Handler *handler.Handler
	Tokens  *auth.TokenService
	Cache   redis.RedisClient
	Metrics http.Handler
}

func SetupRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", health(d.Config)).Methods(http.MethodGet)
	r.HandleFunc("/api", apiIndex).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(notFound)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(rateLimitMiddleware(d.Cache, d.Config.RateLimitMax, d.Config.RateLimitWindow))

	h := d.Handler
	requireAuth := auth.AuthMiddleware(d.Tokens, d.Cache)
	usersOnly := auth.RequireRole(models.UserTypeUser)

	authRoutes := v1.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/verify-otp", h.VerifyOTP).Methods(http.MethodPost)
	authRoutes.HandleFunc("/resend-otp", h.ResendOTP).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	authRoutes.Handle("/logout", requireAuth(http.HandlerFunc(h.Logout))).Methods(http.MethodPost)

	// the gateway calls this without a bearer token
	v1.HandleFunc("/wallet/webhook/paystack", h.PaystackWebhook).Methods(http.MethodPost)

	protected := v1.NewRoute().Subrouter()
	protected.Use(requireAuth)

	users := protected.PathPrefix("/users").Subrouter()
	users.HandleFunc("/profile", h.GetProfile).Methods(http.MethodGet)
	users.HandleFunc("/profile", h.UpdateProfile).Methods(http.MethodPut)
	users.HandleFunc("/kyc-status", h.KYCStatus).Methods(http.MethodGet)
	users.HandleFunc("/kyc", h.SubmitKYC).Methods(http.MethodPost)

	escrow := protected.PathPrefix("/escrow").Subrouter()
	escrow.Handle("/create", usersOnly(http.HandlerFunc(h.CreateEscrow))).Methods(http.MethodPost)
	escrow.HandleFunc("/{id}", h.GetEscrowDetails).Methods(http.MethodGet)
	escrow.Handle("/{id}/confirm-delivery", usersOnly(http.HandlerFunc(h.ConfirmDelivery))).Methods(http.MethodPost)
	escrow.Handle("/{id}/dispute", usersOnly(http.HandlerFunc(h.RaiseDispute))).Methods(http.MethodPost)
	escrow.Handle("/{id}/cancel", usersOnly(http.HandlerFunc(h.CancelTransaction))).Methods(http.MethodPost)
	escrow.Handle("/{id}/assign-rider", usersOnly(http.HandlerFunc(h.AssignRider))).Methods(http.MethodPost)

	transactions := protected.PathPrefix("/transactions").Subrouter()
	transactions.HandleFunc("", h.ListTransactions).Methods(http.MethodGet)
	transactions.HandleFunc("/stats", h.TransactionStats).Methods(http.MethodGet)
	transactions.HandleFunc("/search-users", h.SearchUsers).Methods(http.MethodGet)

	notifications := protected.PathPrefix("/notifications").Subrouter()
	notifications.HandleFunc("", h.ListNotifications).Methods(http.MethodGet)
	notifications.HandleFunc("/read-all", h.MarkAllNotificationsRead).Methods(http.MethodPut)
	notifications.HandleFunc("/{id}/read", h.MarkNotificationRead).Methods(http.MethodPut)
	notifications.HandleFunc("/{id}", h.DeleteNotification).Methods(http.MethodDelete)

	wallet := protected.PathPrefix("/wallet").Subrouter()
	wallet.HandleFunc("", h.GetWallet).Methods(http.MethodGet)
	wallet.HandleFunc("/transactions", h.GetWalletTransactions).Methods(http.MethodGet)
	wallet.HandleFunc("/fund", h.FundWallet).Methods(http.MethodPost)
	wallet.HandleFunc("/withdraw", h.Withdraw).Methods(http.MethodPost)
	wallet.HandleFunc("/transfer", h.Transfer).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins(d.Config.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(panicLogger{}))

	headers := secure.Options{
		ContentTypeNosniff:      true,
		FrameDeny:               true,
		CustomFrameOptionsValue: "SAMEORIGIN",
		ReferrerPolicy:          "no-referrer",
		STSSeconds:              15552000,
		STSIncludeSubdomains:    true,
		IsDevelopment:           !d.Config.IsProduction(),
	}

	chain := cors(r)
	// forwarded headers are client controlled unless a proxy rewrites them
	if d.Config.TrustProxy {
		chain = handlers.ProxyHeaders(chain)
		headers.SSLProxyHeaders = map[string]string{"X-Forwarded-Proto": "https"}
	}
	return recovery(secure.New(headers).Handler(chain))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func health(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"message":     "SureSend API is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Env,
		})
	}
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Welcome to SureSend API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"auth":          "/api/v1/auth",
			"users":         "/api/v1/users",
			"escrow":        "/api/v1/escrow",
			"transactions":  "/api/v1/transactions",
			"notifications": "/api/v1/notifications",
			"wallet":        "/api/v1/wallet",
		},
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"status":  "error",
		"message": "Route not found",
		"path":    r.URL.Path,
	})
}

// metricsMiddleware records request metrics and writes the access log.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(observability.ContextWithAttrs(r.Context(), "request_id", requestID))

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		observability.RequestCounter.WithLabelValues(r.Method, route, fmt.Sprintf("%d", recorder.status)).Inc()
		observability.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		observability.WithContext(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", recorder.status,
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// rateLimitMiddleware allows max requests per client IP per window.
func rateLimitMiddleware(cache redis.RedisClient, max int, window time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			key := "ratelimit:" + clientIP(r)
			n, err := cache.Incr(r.Context(), key, window)
			if err != nil {
				// fail open: a cache outage must not take the API down
				observability.WithContext(r.Context()).Error("rate limit check failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if n > int64(max) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"status":  "error",
					"message": "Too many requests from this IP, please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type panicLogger struct{}

func (panicLogger) Println(v ...interface{}) {
	slog.Error("recovered from panic", "error", fmt.Sprint(v...))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
