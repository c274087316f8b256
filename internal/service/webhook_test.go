package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"gowa-gateway/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string]string

func (m mapStore) GetString(key string) string { return m[key] }

func TestResolveWebhookURL(t *testing.T) {
	t.Parallel()

	w := NewWebhookSink(WebhookOptions{
		BaseURL: "http://base/hook",
		Store:   mapStore{"ALICE_WEBHOOK_URL": "http://alice/hook"},
	})
	assert.Equal(t, "http://alice/hook", w.ResolveWebhookURL("alice"))
	assert.Equal(t, "http://base/hook", w.ResolveWebhookURL("bob"))

	none := NewWebhookSink(WebhookOptions{})
	assert.Empty(t, none.ResolveWebhookURL("bob"))
}

func TestWebhookDeliverSignsAndTagsRequests(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
	}))
	defer srv.Close()

	w := NewWebhookSink(WebhookOptions{BaseURL: srv.URL, Secret: "s3cret", APIKey: "key", Log: zerolog.Nop()})
	w.Deliver("alice", model.EventReady, map[string]any{"ok": true})
	w.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, body)
	assert.JSONEq(t, `{"sessionId":"alice","dataType":"ready","data":{"ok":true}}`, string(body))
	assert.Equal(t, Sign("s3cret", body), headers.Get("X-Webhook-Signature"))
	assert.Equal(t, "key", headers.Get("x-api-key"))
	_, err := uuid.Parse(headers.Get("X-Webhook-Delivery"))
	assert.NoError(t, err)
}

func TestWebhookFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	w := NewWebhookSink(WebhookOptions{BaseURL: srv.URL, Log: zerolog.Nop()})
	assert.NotPanics(t, func() {
		w.Deliver("alice", model.EventMessage, nil)
		w.Wait()
	})

	noURL := NewWebhookSink(WebhookOptions{Log: zerolog.Nop()})
	noURL.Deliver("alice", model.EventMessage, nil)
	noURL.Wait()
}
