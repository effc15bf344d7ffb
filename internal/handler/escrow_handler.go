package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
)

func (h *Handler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.CreateEscrowRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to create escrow transaction")
		return
	}

	deal, err := h.escrow.CreateEscrow(r.Context(), service.CreateEscrowInput{
		BuyerID:       p.UserID,
		SellerID:      req.SellerID,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		RiderID:       req.RiderID,
	})
	if err != nil {
		respondError(w, r, err, "Failed to create escrow transaction")
		return
	}
	respond(w, http.StatusCreated, "Escrow transaction created successfully", map[string]any{"transaction": deal})
}

func (h *Handler) GetEscrowDetails(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	details, err := h.escrow.GetEscrowDetails(r.Context(), mux.Vars(r)["id"], p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve transaction details")
		return
	}
	respond(w, http.StatusOK, "Transaction details retrieved successfully", map[string]any{"transaction": details})
}

func (h *Handler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.ConfirmDeliveryRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to confirm delivery")
		return
	}

	deal, err := h.escrow.ConfirmDelivery(r.Context(), mux.Vars(r)["id"], p.UserID, *req.Confirmed, req.Notes)
	if err != nil {
		respondError(w, r, err, "Failed to confirm delivery")
		return
	}

	msg := "Delivery confirmed. Funds released to seller."
	if !*req.Confirmed {
		msg = "Delivery rejected. Dispute raised."
	}
	respond(w, http.StatusOK, msg, map[string]any{"transaction": deal})
}

func (h *Handler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.RaiseDisputeRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to raise dispute")
		return
	}

	dispute, err := h.escrow.RaiseDispute(r.Context(), mux.Vars(r)["id"], p.UserID, req.Reason)
	if err != nil {
		respondError(w, r, err, "Failed to raise dispute")
		return
	}
	respond(w, http.StatusOK, "Dispute raised successfully. An admin will review it.", map[string]any{"dispute": dispute})
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.CancelTransactionRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			respondError(w, r, err, "Failed to cancel transaction")
			return
		}
	}

	deal, err := h.escrow.CancelTransaction(r.Context(), mux.Vars(r)["id"], p.UserID, req.Reason)
	if err != nil {
		respondError(w, r, err, "Failed to cancel transaction")
		return
	}
	respond(w, http.StatusOK, "Transaction cancelled successfully. Funds have been refunded.", map[string]any{"transaction": deal})
}

func (h *Handler) AssignRider(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.AssignRiderRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to assign rider")
		return
	}

	deal, err := h.escrow.AssignRider(r.Context(), mux.Vars(r)["id"], p.UserID, req.RiderID)
	if err != nil {
		respondError(w, r, err, "Failed to assign rider")
		return
	}
	respond(w, http.StatusOK, "Rider assigned successfully", map[string]any{"transaction": deal})
}
