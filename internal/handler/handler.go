package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/models"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth          service.AuthService
	Escrow        service.EscrowService
	Wallets       service.WalletService
	Transactions  service.TransactionService
	Notifications service.NotificationService
	Users         service.UserService
}

type Handler struct {
	auth          service.AuthService
	escrow        service.EscrowService
	wallets       service.WalletService
	transactions  service.TransactionService
	notifications service.NotificationService
	users         service.UserService
	validate      *validation.Validator
}

func NewHandler(s Services, v *validation.Validator) *Handler {
	return &Handler{
		auth:          s.Auth,
		escrow:        s.Escrow,
		wallets:       s.Wallets,
		transactions:  s.Transactions,
		notifications: s.Notifications,
		users:         s.Users,
		validate:      v,
	}
}

type envelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: "success", Message: message, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, errs []string) {
	writeJSON(w, status, envelope{Status: "error", Message: message, Errors: errs})
}

// errorTable is checked in order; the first match wins.
var errorTable = []struct {
	err     error
	status  int
	message string
}{
	{pkgerrors.ErrInsufficientFunds, http.StatusBadRequest, "Insufficient balance"},
	{pkgerrors.ErrSelfTransaction, http.StatusBadRequest, "Cannot create transaction with yourself"},
	{pkgerrors.ErrSelfTransfer, http.StatusBadRequest, "Cannot transfer to yourself"},
	{pkgerrors.ErrNotSeller, http.StatusBadRequest, "User is not a seller"},
	{pkgerrors.ErrNotRider, http.StatusBadRequest, "User is not a rider"},
	{pkgerrors.ErrOTPExpired, http.StatusBadRequest, "OTP has expired. Please request a new one."},
	{pkgerrors.ErrNoFieldsToUpdate, http.StatusBadRequest, "No fields to update"},
	{pkgerrors.ErrSearchTooShort, http.StatusBadRequest, "Search query must be at least 2 characters"},
	{pkgerrors.ErrInvalidReference, http.StatusBadRequest, "Invalid payment reference"},
	{pkgerrors.ErrInvalidSignature, http.StatusBadRequest, "Invalid signature"},
	{pkgerrors.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{pkgerrors.ErrOTPInvalid, http.StatusUnauthorized, "Invalid OTP code"},
	{pkgerrors.ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{pkgerrors.ErrUserInactive, http.StatusForbidden, "Account is deactivated. Please contact support."},
	{pkgerrors.ErrForbidden, http.StatusForbidden, "You do not have permission to access this resource"},
	{pkgerrors.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{pkgerrors.ErrSellerNotFound, http.StatusNotFound, "Seller not found"},
	{pkgerrors.ErrRiderNotFound, http.StatusNotFound, "Rider not found"},
	{pkgerrors.ErrRecipientNotFound, http.StatusNotFound, "Recipient not found"},
	{pkgerrors.ErrWalletNotFound, http.StatusNotFound, "Wallet not found"},
	{pkgerrors.ErrTransactionNotFound, http.StatusNotFound, "Transaction not found or access denied"},
	{pkgerrors.ErrNotificationNotFound, http.StatusNotFound, "Notification not found"},
	{pkgerrors.ErrOTPNotFound, http.StatusNotFound, "No OTP found. Please request a new one."},
	{pkgerrors.ErrPhoneNotRegistered, http.StatusNotFound, "Phone number not registered"},
	{pkgerrors.ErrInvalidTransition, http.StatusConflict, "Transaction is not in a valid state for this operation"},
	{pkgerrors.ErrRiderAlreadyAssigned, http.StatusConflict, "A rider is already assigned to this transaction"},
	{pkgerrors.ErrUserAlreadyExists, http.StatusConflict, "Username or phone number already exists"},
	{pkgerrors.ErrOTPAttemptsExceeded, http.StatusTooManyRequests, "Too many failed attempts. Please request a new OTP."},
	{pkgerrors.ErrOTPThrottled, http.StatusTooManyRequests, "An OTP was sent recently. Please wait before requesting another."},
	{pkgerrors.ErrRateLimited, http.StatusTooManyRequests, "Too many requests from this IP, please try again later."},
}

// respondError maps err to a status and client message. Anything unknown
// becomes a 500 carrying fallback; details stay in the log.
func respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *pkgerrors.ValidationError
	if errors.As(err, &verr) {
		respondMessage(w, http.StatusBadRequest, "Validation error", verr.Messages())
		return
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			respondMessage(w, e.status, e.message, nil)
			return
		}
	}
	if errors.Is(err, pkgerrors.ErrInvalidInput) {
		respondMessage(w, http.StatusBadRequest, "Validation error", []string{err.Error()})
		return
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondMessage(w, http.StatusInternalServerError, fallback, nil)
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := h.decodeLoose(r, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) decodeLoose(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return pkgerrors.NewValidationError("body", "Request body must be valid JSON")
	}
	return nil
}

func principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Not authenticated", nil)
	}
	return p, ok
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string, def bool) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}
