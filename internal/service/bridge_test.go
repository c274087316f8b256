package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageEvent(t model.EventType, msg *model.Message) model.Event {
	return model.Event{Type: t, Data: map[string]any{"message": msg}, Message: msg}
}

func attachFake(b *Bridge) *fakeClient {
	client := newFakeClient(testOptions("alice"))
	b.Attach("alice", client, nil)
	return client
}

func TestMessageCreateReplaySuppression(t *testing.T) {
	t.Parallel()

	boot := time.Now()
	first, second := &recordingSink{}, &recordingSink{}
	b := NewBridge(BridgeOptions{Sinks: []Sink{first, second}, BootTime: boot, Log: zerolog.Nop()})
	client := attachFake(b)

	suppressed := []*model.Message{
		{ID: "old", IsNewMsg: true, Timestamp: boot.Add(-time.Minute)},
		{ID: "mine", IsNewMsg: true, FromMe: true, Timestamp: boot.Add(time.Minute)},
		{ID: "resync", IsNewMsg: false, Timestamp: boot.Add(time.Minute)},
	}
	for _, msg := range suppressed {
		client.emit(messageEvent(model.EventMessageCreate, msg))
	}
	assert.Empty(t, first.ofType(model.EventMessageCreate))
	assert.Empty(t, second.ofType(model.EventMessageCreate))

	client.emit(messageEvent(model.EventMessageCreate, &model.Message{ID: "fresh", IsNewMsg: true, Timestamp: boot}))
	require.Len(t, first.ofType(model.EventMessageCreate), 1)
	require.Len(t, second.ofType(model.EventMessageCreate), 1)
	assert.Equal(t, "alice", first.ofType(model.EventMessageCreate)[0].SessionID)
}

func TestDisabledEventNeverReachesSinks(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	gate := NewEventGate(ParseDisabledCallbacks("message_ack|qr"))
	b := NewBridge(BridgeOptions{Gate: gate, Sinks: []Sink{sink}, Log: zerolog.Nop()})
	client := attachFake(b)

	for i := 0; i < 20; i++ {
		client.emit(model.Event{Type: model.EventQR, Data: map[string]any{"qr": "code"}})
		client.emit(messageEvent(model.EventMessageAck, &model.Message{ID: "m"}))
	}
	client.emit(model.Event{Type: model.EventReady, Data: map[string]any{}})

	assert.Empty(t, sink.ofType(model.EventQR))
	assert.Empty(t, sink.ofType(model.EventMessageAck))
	assert.Len(t, sink.ofType(model.EventReady), 1)
	assert.Zero(t, client.count("seen"))
}

func TestMediaHydrationRespectsSizeLimit(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	b := NewBridge(BridgeOptions{Sinks: []Sink{sink}, MaxAttachmentSize: 1000, Log: zerolog.Nop()})
	client := attachFake(b)
	client.media = &model.MessageMedia{MimeType: "image/jpeg", Data: "aGk="}

	big := &model.Message{ID: "big", HasMedia: true, MediaSize: 1000}
	small := &model.Message{ID: "small", HasMedia: true, MediaSize: 999}
	client.emit(messageEvent(model.EventMessage, big))
	client.emit(messageEvent(model.EventMessage, small))
	b.Wait()

	assert.Len(t, sink.ofType(model.EventMessage), 2)
	media := sink.ofType(model.EventMedia)
	require.Len(t, media, 1)
	payload := media[0].Payload.(map[string]any)
	assert.Same(t, small, payload["message"])
	assert.Equal(t, client.media, payload["messageMedia"])
	assert.Equal(t, 1, client.count("download"))
}

func TestMediaFetchFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	b := NewBridge(BridgeOptions{Sinks: []Sink{sink}, MaxAttachmentSize: 1000, Log: zerolog.Nop()})
	client := attachFake(b)

	client.emit(messageEvent(model.EventMessage, &model.Message{ID: "m", HasMedia: true, MediaSize: 10}))
	b.Wait()

	assert.Len(t, sink.ofType(model.EventMessage), 1)
	assert.Empty(t, sink.ofType(model.EventMedia))
}

func TestMessageDisabledStillMarksSeen(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	gate := NewEventGate([]model.EventType{model.EventMessage, model.EventMedia})
	b := NewBridge(BridgeOptions{Gate: gate, Sinks: []Sink{sink}, SetMessagesAsSeen: true, Log: zerolog.Nop()})
	client := attachFake(b)

	client.emit(messageEvent(model.EventMessage, &model.Message{ID: "m"}))
	client.emit(messageEvent(model.EventMessageAck, &model.Message{ID: "m"}))
	b.Wait()

	assert.Empty(t, sink.ofType(model.EventMessage))
	assert.Len(t, sink.ofType(model.EventMessageAck), 1)
	assert.Equal(t, 2, client.count("seen"))
}

func TestPanickingSinkDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	b := NewBridge(BridgeOptions{Sinks: []Sink{panickingSink{}, sink}, Log: zerolog.Nop()})

	assert.NotPanics(t, func() { b.Dispatch("alice", model.EventReady, nil) })
	assert.Len(t, sink.ofType(model.EventReady), 1)
}

func TestBindingDetachStopsDelivery(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	b := NewBridge(BridgeOptions{Sinks: []Sink{sink}, RecoverSessions: true, Log: zerolog.Nop()})
	client := newFakeClient(testOptions("alice"))
	restarts := 0
	bd := b.Attach("alice", client, func() { restarts++ })

	bd.Detach()
	bd.Detach()
	client.emit(model.Event{Type: model.EventReady})
	client.fault(errBoom)

	assert.Empty(t, sink.ofType(model.EventReady))
	assert.Zero(t, restarts)
	assert.False(t, bd.Restarting())
	assert.Zero(t, client.listenerCount())
}

// webhookRecorder is an HTTP endpoint collecting webhook payloads.
type webhookRecorder struct {
	mu       sync.Mutex
	payloads []WebhookPayload
	headers  []http.Header
}

func (r *webhookRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var p WebhookPayload
	_ = json.Unmarshal(body, &p)
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.headers = append(r.headers, req.Header.Clone())
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *webhookRecorder) dataTypes() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EventType
	for _, p := range r.payloads {
		out = append(out, p.DataType)
	}
	return out
}

func TestOversizedMediaOnlyDeliversMessageWebhook(t *testing.T) {
	t.Parallel()

	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	webhook := NewWebhookSink(WebhookOptions{BaseURL: srv.URL, Log: zerolog.Nop()})
	env := newTestEnv(t, func(c *fakeClient) {
		c.media = &model.MessageMedia{MimeType: "video/mp4", Data: "AAAA"}
	}, BridgeOptions{Sinks: []Sink{webhook}, MaxAttachmentSize: 1 << 20})
	client := env.mustSetup(t, "alice")

	client.emit(messageEvent(model.EventMessage, &model.Message{
		ID:        "huge",
		HasMedia:  true,
		MediaSize: 50 << 20,
		Timestamp: time.Now(),
	}))
	env.lifecycle.Bridge().Wait()
	webhook.Wait()

	got := rec.dataTypes()
	assert.Contains(t, got, model.EventMessage)
	assert.NotContains(t, got, model.EventMedia)
	assert.Zero(t, client.count("download"))
}
