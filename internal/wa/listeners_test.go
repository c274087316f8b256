package wa

import (
	"errors"
	"testing"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestListenersEmitReachesOnlyMatchingType(t *testing.T) {
	t.Parallel()

	l := newListeners(zerolog.Nop())
	var got []model.EventType
	l.subscribe(model.EventQR, func(e model.Event) { got = append(got, e.Type) })
	l.subscribe(model.EventReady, func(e model.Event) { got = append(got, e.Type) })

	l.emit(model.Event{Type: model.EventQR})
	l.emit(model.Event{Type: model.EventCall})

	assert.Equal(t, []model.EventType{model.EventQR}, got)
}

func TestListenersUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	l := newListeners(zerolog.Nop())
	calls := 0
	sub := l.subscribe(model.EventMessage, func(model.Event) { calls++ })
	fault := l.onFault(func(error) { calls++ })

	sub.Unsubscribe()
	sub.Unsubscribe()
	fault.Unsubscribe()

	l.emit(model.Event{Type: model.EventMessage})
	l.fault(errors.New("boom"))
	assert.Zero(t, calls)
}

func TestListenersRecoverPanics(t *testing.T) {
	t.Parallel()

	l := newListeners(zerolog.Nop())
	reached := false
	l.subscribe(model.EventMessage, func(model.Event) { panic("bad listener") })
	l.subscribe(model.EventMessage, func(model.Event) { reached = true })

	assert.NotPanics(t, func() { l.emit(model.Event{Type: model.EventMessage}) })
	assert.True(t, reached)
}

func TestListenersUnsubscribeFromInsideListener(t *testing.T) {
	t.Parallel()

	l := newListeners(zerolog.Nop())
	calls := 0
	var sub Subscription
	sub = l.onFault(func(error) {
		calls++
		sub.Unsubscribe()
	})

	l.fault(errors.New("first"))
	l.fault(errors.New("second"))
	assert.Equal(t, 1, calls)
}
