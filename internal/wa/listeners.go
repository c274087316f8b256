package wa

import (
	"sync"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
)

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// listeners is the per-client subscription table.
type listeners struct {
	mu     sync.RWMutex
	next   uint64
	events map[model.EventType]map[uint64]func(model.Event)
	faults map[uint64]func(error)
	log    zerolog.Logger
}

func newListeners(log zerolog.Logger) *listeners {
	return &listeners{
		events: make(map[model.EventType]map[uint64]func(model.Event)),
		faults: make(map[uint64]func(error)),
		log:    log,
	}
}

func (l *listeners) subscribe(t model.EventType, fn func(model.Event)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	if l.events[t] == nil {
		l.events[t] = make(map[uint64]func(model.Event))
	}
	l.events[t][id] = fn
	return &subscription{fn: func() {
		l.mu.Lock()
		delete(l.events[t], id)
		l.mu.Unlock()
	}}
}

func (l *listeners) onFault(fn func(error)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.faults[id] = fn
	return &subscription{fn: func() {
		l.mu.Lock()
		delete(l.faults, id)
		l.mu.Unlock()
	}}
}

func (l *listeners) emit(evt model.Event) {
	l.mu.RLock()
	fns := make([]func(model.Event), 0, len(l.events[evt.Type]))
	for _, fn := range l.events[evt.Type] {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		l.safeCall(string(evt.Type), func() { fn(evt) })
	}
}

func (l *listeners) fault(err error) {
	l.mu.RLock()
	fns := make([]func(error), 0, len(l.faults))
	for _, fn := range l.faults {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		l.safeCall("fault", func() { fn(err) })
	}
}

func (l *listeners) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("listener", name).Msg("Event listener panicked")
		}
	}()
	fn()
}
