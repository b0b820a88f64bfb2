package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/config"
	"studioline/internal/notify"
)

func TestFromConfigWithoutURLIsNoop(t *testing.T) {
	n := notify.FromConfig(config.Notifications{}, nil)
	_, ok := n.(notify.Noop)
	assert.True(t, ok)
	assert.NoError(t, n.Send(context.Background(), notify.Notice{}))
}

func TestWebhookPostsNotice(t *testing.T) {
	var (
		got    notify.Notice
		secret string
		event  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Studioline-Secret")
		event = r.Header.Get("X-Studioline-Event")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := notify.FromConfig(config.Notifications{WebhookURL: srv.URL, Secret: "s3cret", TimeoutSeconds: 2}, nil)
	err := n.Send(context.Background(), notify.Notice{
		ProjectRefID: "ACT-1001",
		Subject:      "Schedule",
		Recipients:   []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "notice.sent", event)
	assert.Equal(t, "ACT-1001", got.ProjectRefID)
	assert.Len(t, got.Recipients, 2)
}

func TestWebhookReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mailbox full", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := &notify.Webhook{URL: srv.URL}
	err := n.Send(context.Background(), notify.Notice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "mailbox full")
}
