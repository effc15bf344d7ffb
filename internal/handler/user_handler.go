package handler

import (
	"net/http"

	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/validation"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve profile")
		return
	}
	respond(w, http.StatusOK, "Profile retrieved successfully", map[string]any{
		"user": profile.User,
		"wallet": map[string]any{
			"balance":  profile.Balance,
			"currency": profile.Currency,
		},
		"stats": profile.Stats,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.UpdateProfileRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to update profile")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), p.UserID, models.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		respondError(w, r, err, "Failed to update profile")
		return
	}
	respond(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}

func (h *Handler) KYCStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	kyc, err := h.users.KYCStatus(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve KYC status")
		return
	}
	respond(w, http.StatusOK, "KYC status retrieved successfully", map[string]any{
		"kycStatus": kyc.Status,
		"documents": kyc.Documents,
	})
}

func (h *Handler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req validation.SubmitKYCRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err, "Failed to submit KYC document")
		return
	}

	doc, err := h.users.SubmitKYC(r.Context(), p.UserID, req.DocumentType, req.DocumentURL)
	if err != nil {
		respondError(w, r, err, "Failed to submit KYC document")
		return
	}
	respond(w, http.StatusCreated, "KYC document submitted successfully", map[string]any{"document": doc})
}
