package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/wa"

	"github.com/rs/zerolog"
)

const mediaFetchTimeout = 60 * time.Second

// Sink receives gated events. Implementations must not block for long.
type Sink interface {
	Deliver(sessionID string, eventType model.EventType, payload any)
}

type BridgeOptions struct {
	Gate  *EventGate
	Sinks []Sink
	// MaxAttachmentSize is the exclusive upper bound, in bytes, for automatic media download.
	MaxAttachmentSize int64
	SetMessagesAsSeen bool
	RecoverSessions   bool
	// BootTime is the process start; message_create events older than this are dropped.
	BootTime time.Time
	Log      zerolog.Logger
}

// Bridge wires a client's events through the gate to every sink.
type Bridge struct {
	opts BridgeOptions
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func NewBridge(opts BridgeOptions) *Bridge {
	if opts.BootTime.IsZero() {
		opts.BootTime = time.Now()
	}
	return &Bridge{opts: opts, log: opts.Log.With().Str("component", "bridge").Logger()}
}

// Dispatch sends payload to every sink if eventType is enabled. A panicking
// sink does not keep the others from running.
func (b *Bridge) Dispatch(sessionID string, eventType model.EventType, payload any) {
	if !b.opts.Gate.Enabled(eventType) {
		return
	}
	for _, sink := range b.opts.Sinks {
		b.deliver(sink, sessionID, eventType, payload)
	}
}

func (b *Bridge) deliver(sink Sink, sessionID string, eventType model.EventType, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("session_id", sessionID).Str("data_type", string(eventType)).Msg("Sink panicked")
		}
	}()
	sink.Deliver(sessionID, eventType, payload)
}

// Wait blocks until background media downloads and seen updates finish.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) goAsync(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Binding is the set of listeners a bridge attached to one client.
type Binding struct {
	mu         sync.Mutex
	events     []wa.Subscription
	faults     []wa.Subscription
	quiet      bool
	restarting atomic.Bool
}

// DetachFaults removes the crash-restart listeners so a deliberate teardown
// cannot trigger a restart. Watch is ignored until ResumeFaults.
func (bd *Binding) DetachFaults() {
	bd.mu.Lock()
	faults := bd.faults
	bd.faults = nil
	bd.quiet = true
	bd.mu.Unlock()
	for _, s := range faults {
		s.Unsubscribe()
	}
}

// Detach removes every listener.
func (bd *Binding) Detach() {
	bd.DetachFaults()
	bd.mu.Lock()
	evs := bd.events
	bd.events = nil
	bd.mu.Unlock()
	for _, s := range evs {
		s.Unsubscribe()
	}
}

// ResumeFaults lets Watch arm crash listeners again after DetachFaults.
func (bd *Binding) ResumeFaults() {
	bd.mu.Lock()
	bd.quiet = false
	bd.mu.Unlock()
}

// Restarting reports whether the crash handler already fired.
func (bd *Binding) Restarting() bool {
	return bd.restarting.Load()
}

// Watch arms crash recovery on bd: when enabled, onCrash runs at most once,
// on the first fault the client reports. It is a no-op on a binding whose
// faults were detached.
func (b *Bridge) Watch(bd *Binding, sessionID string, client wa.Client, onCrash func()) {
	if !b.opts.RecoverSessions || onCrash == nil {
		return
	}
	log := b.log.With().Str("session_id", sessionID).Logger()
	sub := client.OnFault(func(err error) {
		if !bd.restarting.CompareAndSwap(false, true) {
			return
		}
		log.Warn().Err(err).Msg("Client crashed, restarting session")
		bd.DetachFaults()
		go onCrash()
	})

	bd.mu.Lock()
	if bd.quiet {
		bd.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	bd.faults = append(bd.faults, sub)
	bd.mu.Unlock()
}

// Attach subscribes to client's events for sessionID and, if onCrash is set,
// arms crash recovery through Watch.
func (b *Bridge) Attach(sessionID string, client wa.Client, onCrash func()) *Binding {
	bd := &Binding{}
	log := b.log.With().Str("session_id", sessionID).Logger()
	gate := b.opts.Gate

	for _, t := range model.ClientEventTypes {
		var handler func(model.Event)
		switch t {
		case model.EventMessage:
			if !gate.Enabled(t) && !gate.Enabled(model.EventMedia) && !b.opts.SetMessagesAsSeen {
				continue
			}
			handler = func(e model.Event) { b.onMessage(sessionID, client, e, log) }
		case model.EventMessageAck:
			if !gate.Enabled(t) && !b.opts.SetMessagesAsSeen {
				continue
			}
			handler = func(e model.Event) {
				b.Dispatch(sessionID, e.Type, e.Data)
				b.markSeen(client, e.Message, log)
			}
		case model.EventMessageCreate:
			if !gate.Enabled(t) {
				continue
			}
			handler = func(e model.Event) {
				if b.isReplay(e.Message) {
					return
				}
				b.Dispatch(sessionID, e.Type, e.Data)
			}
		default:
			if !gate.Enabled(t) {
				continue
			}
			handler = func(e model.Event) { b.Dispatch(sessionID, e.Type, e.Data) }
		}
		bd.events = append(bd.events, client.Subscribe(t, handler))
	}
	b.Watch(bd, sessionID, client, onCrash)
	return bd
}

// isReplay reports whether a message_create event should be suppressed: own
// messages, messages not newly received, and anything sent before boot.
func (b *Bridge) isReplay(msg *model.Message) bool {
	if msg == nil {
		return true
	}
	return msg.FromMe || !msg.IsNewMsg || msg.Timestamp.Before(b.opts.BootTime)
}

func (b *Bridge) onMessage(sessionID string, client wa.Client, e model.Event, log zerolog.Logger) {
	b.Dispatch(sessionID, e.Type, e.Data)

	msg := e.Message
	if msg != nil && msg.HasMedia && b.opts.Gate.Enabled(model.EventMedia) {
		if int64(msg.MediaSize) < b.opts.MaxAttachmentSize {
			b.goAsync(func() { b.hydrate(sessionID, client, msg, log) })
		} else {
			log.Debug().Str("message_id", msg.ID).Uint64("size", msg.MediaSize).Msg("Attachment too large, skipping download")
		}
	}
	b.markSeen(client, msg, log)
}

func (b *Bridge) hydrate(sessionID string, client wa.Client, msg *model.Message, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), mediaFetchTimeout)
	defer cancel()
	media, err := client.DownloadMedia(ctx, msg)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to download media")
		return
	}
	b.Dispatch(sessionID, model.EventMedia, map[string]any{"messageMedia": media, "message": msg})
}

func (b *Bridge) markSeen(client wa.Client, msg *model.Message, log zerolog.Logger) {
	if !b.opts.SetMessagesAsSeen || msg == nil {
		return
	}
	b.goAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.MarkSeen(ctx, msg); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to mark message as seen")
		}
	})
}
