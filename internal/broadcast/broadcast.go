// Package broadcast delivers typed events to one, many, or all-but-one
// participants. It is a sink: game logic calls into it and it never
// calls back. Closed or missing transports are logged drops, never
// errors surfaced to the caller.
package broadcast

import (
	"go.uber.org/zap"
)

// Transport is a single participant's live outbound channel.
type Transport interface {
	// Send queues an event for delivery. Implementations must not
	// block the caller.
	Send(event string, payload any) error
	// Open reports whether the transport can still deliver.
	Open() bool
	// ParticipantID identifies who is behind the transport.
	ParticipantID() string
}

// Roster exposes the live transports of a room's participants, players
// and spectators alike.
type Roster interface {
	Transports() []Transport
}

// Broadcaster fans typed events out to transports.
type Broadcaster struct {
	logger *zap.Logger
}

// New creates a Broadcaster.
func New(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// SendTo delivers an event to a single transport. A nil or closed
// transport is a logged drop.
func (b *Broadcaster) SendTo(t Transport, event string, payload any) {
	if t == nil || !t.Open() {
		b.logger.Debug("dropping event for absent transport",
			zap.String("event", event),
		)
		return
	}
	if err := t.Send(event, payload); err != nil {
		b.logger.Warn("failed to send event",
			zap.String("event", event),
			zap.String("participant_id", t.ParticipantID()),
			zap.Error(err),
		)
	}
}

// ToRoom delivers an event to every live transport in the roster.
func (b *Broadcaster) ToRoom(r Roster, event string, payload any) {
	for _, t := range r.Transports() {
		b.SendTo(t, event, payload)
	}
}

// ToOthers delivers an event to every live transport in the roster
// except the one belonging to excludeID.
func (b *Broadcaster) ToOthers(r Roster, excludeID, event string, payload any) {
	for _, t := range r.Transports() {
		if t.ParticipantID() == excludeID {
			continue
		}
		b.SendTo(t, event, payload)
	}
}
