package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/wa"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSub struct{}

func (nopSub) Unsubscribe() {}

type stubClient struct {
	wa.Client
	state model.State
}

func (s *stubClient) Initialize(context.Context) error                             { return nil }
func (s *stubClient) Transport() wa.TransportStatus                                { return wa.TransportReady }
func (s *stubClient) State(context.Context) (model.State, error)                   { return s.state, nil }
func (s *stubClient) Subscribe(model.EventType, func(model.Event)) wa.Subscription { return nopSub{} }
func (s *stubClient) OnFault(func(error)) wa.Subscription                          { return nopSub{} }

func newLifecycle(t *testing.T, states map[string]model.State) *service.Lifecycle {
	t.Helper()
	l := service.NewLifecycle(service.LifecycleOptions{
		SessionsPath: t.TempDir(),
		Factory: func(o wa.Options) (wa.Client, error) {
			return &stubClient{state: states[o.SessionID]}, nil
		},
		Log:              zerolog.Nop(),
		ValidateInterval: time.Millisecond,
	})
	for id := range states {
		res, err := l.Setup(context.Background(), id)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	return l
}

func request(t *testing.T, mw echo.MiddlewareFunc, sessionID string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	e.GET("/client/getClassInfo/:sessionId", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/client/getClassInfo/"+sessionID, nil))

	var body map[string]interface{}
	if rec.Code != http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestSessionNameValidation(t *testing.T) {
	t.Parallel()

	rec, _ := request(t, SessionNameValidation(), "alice-01")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := request(t, SessionNameValidation(), "alice.01")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestSessionValidation(t *testing.T) {
	t.Parallel()

	l := newLifecycle(t, map[string]model.State{
		"alice": model.StateConnected,
		"bob":   model.StateUnpaired,
	})
	mw := SessionValidation(l)

	rec, _ := request(t, mw, "alice")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := request(t, mw, "bob")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.MsgSessionNotConnected, body["message"])
	assert.Equal(t, string(model.StateUnpaired), body["error"].(map[string]interface{})["state"])

	rec, body = request(t, mw, "carol")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.MsgSessionNotFound, body["message"])
}
