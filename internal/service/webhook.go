package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"gowa-gateway/config"
	"gowa-gateway/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type WebhookPayload struct {
	SessionID string          `json:"sessionId"`
	DataType  model.EventType `json:"dataType"`
	Data      any             `json:"data"`
}

type WebhookOptions struct {
	BaseURL string
	// Secret signs each body with HMAC-SHA256 in X-Webhook-Signature.
	Secret string
	// APIKey is forwarded as x-api-key so receivers can authenticate the gateway.
	APIKey  string
	Store   config.Store
	Timeout time.Duration
	Log     zerolog.Logger
}

// WebhookSink posts events to the session's webhook URL. Delivery is
// fire-and-forget: failures are logged and never retried.
type WebhookSink struct {
	opts   WebhookOptions
	client *http.Client
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewWebhookSink(opts WebhookOptions) *WebhookSink {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &WebhookSink{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    opts.Log.With().Str("component", "webhook").Logger(),
	}
}

// ResolveWebhookURL returns {SESSIONID}_WEBHOOK_URL when set, otherwise the
// base URL. An empty result disables delivery for the session.
func (w *WebhookSink) ResolveWebhookURL(sessionID string) string {
	if w.opts.Store != nil {
		if u := w.opts.Store.GetString(strings.ToUpper(sessionID) + "_WEBHOOK_URL"); u != "" {
			return u
		}
	}
	return w.opts.BaseURL
}

func (w *WebhookSink) Deliver(sessionID string, eventType model.EventType, payload any) {
	url := w.ResolveWebhookURL(sessionID)
	if url == "" {
		return
	}
	log := w.log.With().Str("session_id", sessionID).Str("data_type", string(eventType)).Logger()

	body, err := json.Marshal(WebhookPayload{SessionID: sessionID, DataType: eventType, Data: payload})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery", uuid.NewString())
	if w.opts.APIKey != "" {
		req.Header.Set("x-api-key", w.opts.APIKey)
	}
	if w.opts.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(w.opts.Secret, body))
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		resp, err := w.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Msg("Webhook delivery failed")
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Warn().Int("status", resp.StatusCode).Msg("Webhook rejected")
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (w *WebhookSink) Wait() {
	w.wg.Wait()
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
