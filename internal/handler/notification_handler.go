package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	page, err := h.notifications.List(r.Context(), p.UserID,
		queryBool(r, "unreadOnly", false),
		queryInt(r, "limit", 0),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		respondError(w, r, err, "Failed to retrieve notifications")
		return
	}
	respond(w, http.StatusOK, "Notifications retrieved successfully", map[string]any{
		"notifications": page.Notifications,
		"unreadCount":   page.UnreadCount,
		"hasMore":       page.HasMore,
	})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), mux.Vars(r)["id"], p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to mark notification as read")
		return
	}
	respond(w, http.StatusOK, "Notification marked as read", map[string]any{"notification": n})
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err, "Failed to mark all notifications as read")
		return
	}
	respond(w, http.StatusOK, "All notifications marked as read", map[string]any{"updated": updated})
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.notifications.Delete(r.Context(), mux.Vars(r)["id"], p.UserID); err != nil {
		respondError(w, r, err, "Failed to delete notification")
		return
	}
	respond(w, http.StatusOK, "Notification deleted successfully", nil)
}
