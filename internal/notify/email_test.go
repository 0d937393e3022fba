package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/config"
	"tokentra/internal/models"
	"tokentra/internal/utils"
)

type staticRecipients struct {
	emails []string
}

func (s staticRecipients) AdminEmails(context.Context, string) ([]string, error) {
	return s.emails, nil
}

func testNotification() *models.Notification {
	return &models.Notification{
		OrganizationID: "org-1",
		Type:           "alert",
		Title:          "Spend alert: Daily limit",
		Message:        "Spend threshold of $100.00 exceeded.",
		Priority:       models.PriorityHigh,
	}
}

func TestEmailNotifierSend(t *testing.T) {
	var received emailRequest
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewEmailNotifier(config.EmailConfig{
		Enabled:  true,
		Endpoint: server.URL,
		APIKey:   "re_test_key",
		From:     "TokenTRA <alerts@tokentra.com>",
	}, staticRecipients{emails: []string{"admin@example.com"}}, utils.NewLogger("test", utils.Critical))

	err := notifier.Send(context.Background(), testNotification())
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test_key", authHeader)
	assert.Equal(t, "TokenTRA <alerts@tokentra.com>", received.From)
	assert.Equal(t, []string{"admin@example.com"}, received.To)
	assert.Equal(t, "Spend alert: Daily limit", received.Subject)
	assert.Contains(t, received.HTML, "Spend threshold of $100.00 exceeded.")
}

func TestEmailNotifierAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer server.Close()

	notifier := NewEmailNotifier(config.EmailConfig{
		Endpoint: server.URL,
	}, staticRecipients{emails: []string{"admin@example.com"}}, utils.NewLogger("test", utils.Critical))

	err := notifier.Send(context.Background(), testNotification())
	assert.ErrorContains(t, err, "401")
}

func TestEmailNotifierNoRecipients(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	notifier := NewEmailNotifier(config.EmailConfig{
		Endpoint: server.URL,
	}, staticRecipients{}, utils.NewLogger("test", utils.Critical))

	require.NoError(t, notifier.Send(context.Background(), testNotification()))
	assert.False(t, called)
}
