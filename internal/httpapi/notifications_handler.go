package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokentra/internal/middleware"
	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

const defaultNotificationLimit = 50

// NotificationStore backs the dashboard notification endpoints.
type NotificationStore interface {
	ListUnread(ctx context.Context, orgID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, orgID, id string) error
}

type notificationResponse struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Priority  string       `json:"priority"`
	Data      models.JSONB `json:"data"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NotificationsHandler serves the dashboard's unread notification feed.
// All routes require a session token.
type NotificationsHandler struct {
	store  NotificationStore
	logger *utils.Logger
}

// NewNotificationsHandler creates the notifications handler.
func NewNotificationsHandler(store NotificationStore, logger *utils.Logger) *NotificationsHandler {
	return &NotificationsHandler{store: store, logger: logger}
}

func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetSessionClaims(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "MISSING_AUTH", "Authorization header required")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notifications"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r, claims.OrganizationID)
	case strings.HasSuffix(rest, "/read") && r.Method == http.MethodPost:
		h.markRead(w, r, claims.OrganizationID, strings.TrimSuffix(rest, "/read"))
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	}
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request, orgID string) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			utils.RespondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	notifications, err := h.store.ListUnread(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "org_id", orgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Priority:  n.Priority,
			Data:      n.Data,
			CreatedAt: n.CreatedAt,
		})
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request, orgID, id string) {
	err := h.store.MarkRead(r.Context(), orgID, id)
	if errors.Is(err, storage.ErrEntityNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to mark notification read", "org_id", orgID, "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
