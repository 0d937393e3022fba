package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

type memNotificationStore struct {
	notifications []models.Notification
	read          []string
	lastLimit     int
}

func (s *memNotificationStore) ListUnread(_ context.Context, orgID string, limit int) ([]models.Notification, error) {
	s.lastLimit = limit
	var out []models.Notification
	for _, n := range s.notifications {
		if n.OrganizationID == orgID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotificationStore) MarkRead(_ context.Context, orgID, id string) error {
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].OrganizationID == orgID {
			now := time.Now()
			s.notifications[i].ReadAt = &now
			s.read = append(s.read, id)
			return nil
		}
	}
	return storage.ErrEntityNotFound
}

func newNotificationsHandler(notifications ...models.Notification) (*NotificationsHandler, *memNotificationStore) {
	store := &memNotificationStore{notifications: notifications}
	return NewNotificationsHandler(store, utils.NewLogger("test", utils.Critical)), store
}

func TestNotificationsList(t *testing.T) {
	handler, store := newNotificationsHandler(
		models.Notification{ID: "n-1", OrganizationID: "org-1", Type: "alert", Title: "Cost spike detected"},
		models.Notification{ID: "n-2", OrganizationID: "org-2", Type: "alert", Title: "Other org"},
	)

	req := withSession(httptest.NewRequest(http.MethodGet, "/v1/notifications", nil), "org-1", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, defaultNotificationLimit, store.lastLimit)

	var resp struct {
		Notifications []notificationResponse `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "n-1", resp.Notifications[0].ID)
	assert.Equal(t, "Cost spike detected", resp.Notifications[0].Title)
}

func TestNotificationsListHonorsLimit(t *testing.T) {
	handler, store := newNotificationsHandler()

	req := withSession(httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=10", nil), "org-1", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, store.lastLimit)
}

func TestNotificationsListRejectsBadLimit(t *testing.T) {
	handler, _ := newNotificationsHandler()

	req := withSession(httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=0", nil), "org-1", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationsMarkRead(t *testing.T) {
	handler, store := newNotificationsHandler(
		models.Notification{ID: "n-1", OrganizationID: "org-1", Type: "alert"},
	)

	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/n-1/read", nil), "org-1", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"n-1"}, store.read)
}

func TestNotificationsMarkReadUnknown(t *testing.T) {
	handler, _ := newNotificationsHandler()

	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/n-404/read", nil), "org-1", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsScopedToOrganization(t *testing.T) {
	handler, store := newNotificationsHandler(
		models.Notification{ID: "n-1", OrganizationID: "org-1", Type: "alert"},
	)

	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/n-1/read", nil), "org-2", "user-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.read)
}

func TestNotificationsRequireSession(t *testing.T) {
	handler, _ := newNotificationsHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
