package handler

import (
	"net/http"

	"github.com/honeynil/SureSend/internal/models"
	service "github.com/honeynil/SureSend/internal/services"
)

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := h.transactions.List(r.Context(), p.UserID, service.ListTransactionsQuery{
		Role:   models.ParticipantRole(q.Get("role")),
		Status: models.StatusType(q.Get("status")),
		Type:   models.TransactionType(q.Get("type")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 0),
	})
	if err != nil {
		respondError(w, r, err, "Failed to retrieve transactions")
		return
	}
	respond(w, http.StatusOK, "Transactions retrieved successfully", map[string]any{
		"transactions": page.Transactions,
		"pagination":   page.Pagination,
	})
}

func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.transactions.Stats(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve transaction statistics")
		return
	}
	respond(w, http.StatusOK, "Transaction statistics retrieved successfully", map[string]any{"stats": stats})
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.transactions.SearchUsers(r.Context(),
		r.URL.Query().Get("search"),
		queryBool(r, "excludeRiders", true),
		queryInt(r, "limit", 0),
	)
	if err != nil {
		respondError(w, r, err, "Failed to search users")
		return
	}
	respond(w, http.StatusOK, "Users found", map[string]any{"users": users})
}
