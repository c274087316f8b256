package service

import (
	"strings"

	"gowa-gateway/internal/model"
)

// EventGate decides which event types are dispatched to sinks.
type EventGate struct {
	disabled map[model.EventType]struct{}
}

func NewEventGate(disabled []model.EventType) *EventGate {
	g := &EventGate{disabled: make(map[model.EventType]struct{}, len(disabled))}
	for _, t := range disabled {
		g.disabled[t] = struct{}{}
	}
	return g
}

// Enabled is safe on a nil gate, which enables everything.
func (g *EventGate) Enabled(t model.EventType) bool {
	if g == nil {
		return true
	}
	_, off := g.disabled[t]
	return !off
}

// ParseDisabledCallbacks splits a pipe-separated list such as "message_ack|qr".
func ParseDisabledCallbacks(raw string) []model.EventType {
	var out []model.EventType
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, model.EventType(part))
		}
	}
	return out
}
