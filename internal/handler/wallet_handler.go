package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/honeynil/SureSend/internal/models"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
)

const paystackSignatureHeader = "X-Paystack-Signature"

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve wallet")
		return
	}
	respond(w, http.StatusOK, "Wallet retrieved successfully", map[string]any{"wallet": wallet})
}

func (h *Handler) GetWalletTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter := models.WalletTransactionFilter{
		Type:   models.EntryType(r.URL.Query().Get("type")),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	var err error
	if filter.StartDate, err = queryTime(r, "startDate", false); err != nil {
		respondError(w, r, err, "Failed to retrieve wallet transactions")
		return
	}
	if filter.EndDate, err = queryTime(r, "endDate", true); err != nil {
		respondError(w, r, err, "Failed to retrieve wallet transactions")
		return
	}

	hist, err := h.wallets.GetTransactions(r.Context(), p.UserID, filter)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve wallet transactions")
		return
	}
	respond(w, http.StatusOK, "Wallet transactions retrieved successfully", map[string]any{
		"transactions": hist.Transactions,
		"pagination": map[string]any{
			"total":   hist.Total,
			"limit":   hist.Limit,
			"offset":  hist.Offset,
			"hasMore": hist.HasMore,
		},
	})
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func queryTime(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, pkgerrors.NewValidationError(key, key+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) FundWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.FundWalletRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to initiate wallet funding")
		return
	}

	res, err := h.wallets.FundWallet(r.Context(), p.UserID, req.Amount, req.PaymentMethod)
	if err != nil {
		respondError(w, r, err, "Failed to initiate wallet funding")
		return
	}
	respond(w, http.StatusOK, "Payment initialized", map[string]any{
		"reference":     res.Reference,
		"amount":        res.Amount,
		"paymentMethod": res.PaymentMethod,
		"paymentUrl":    res.PaymentURL,
		"message":       "Complete payment to fund wallet",
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.WithdrawRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to process withdrawal")
		return
	}

	res, err := h.wallets.Withdraw(r.Context(), service.WithdrawInput{
		UserID:         p.UserID,
		Amount:         req.Amount,
		Method:         req.WithdrawalMethod,
		AccountDetails: *req.AccountDetails,
	})
	if err != nil {
		respondError(w, r, err, "Failed to process withdrawal")
		return
	}
	respond(w, http.StatusOK, "Withdrawal request submitted", map[string]any{
		"reference":        res.Reference,
		"amount":           res.Amount,
		"withdrawalMethod": res.Method,
		"status":           res.Status,
		"message":          "Your withdrawal will be processed within 24 hours",
		"newBalance":       res.NewBalance,
	})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.TransferRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to transfer funds")
		return
	}

	res, err := h.wallets.Transfer(r.Context(), service.TransferInput{
		SenderID:          p.UserID,
		RecipientUsername: req.RecipientUsername,
		Amount:            req.Amount,
		Description:       req.Description,
	})
	if err != nil {
		respondError(w, r, err, "Failed to transfer funds")
		return
	}
	respond(w, http.StatusOK, "Transfer successful", map[string]any{
		"reference":  res.Reference,
		"amount":     res.Amount,
		"recipient":  res.Recipient,
		"newBalance": res.NewBalance,
	})
}

// PaystackWebhook answers in plain text; the gateway only reads the status.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	err = h.wallets.HandlePaystackWebhook(r.Context(), body, r.Header.Get(paystackSignatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook received"))
	case errors.Is(err, pkgerrors.ErrInvalidSignature):
		http.Error(w, "Invalid signature", http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrInvalidReference), errors.Is(err, pkgerrors.ErrInvalidInput):
		http.Error(w, "Invalid reference", http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrWalletNotFound):
		http.Error(w, "Wallet not found", http.StatusNotFound)
	default:
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
	}
}
