package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

const cardSeparator = "\n\n---\n\n"

// Sink delivers a message to an external alert channel. detail may be empty.
type Sink interface {
	SendMessage(ctx context.Context, text, detail string) error
}

// Message is one transition alert.
type Message struct {
	Service string
	Up      bool
	Text    string
	Detail  string
}

type Emitter struct {
	sink    Sink
	mention string
	logger  *slog.Logger
}

// NewEmitter returns an emitter that sends to sink. A nil sink disables
// delivery; transitions are still detected.
func NewEmitter(sink Sink, mention string, logger *slog.Logger) *Emitter {
	return &Emitter{
		sink:    sink,
		mention: mention,
		logger:  logger,
	}
}

func (e *Emitter) Enabled() bool {
	return e.sink != nil
}

// Transition reports the alert for prev -> next, if the pair is an edge.
func (e *Emitter) Transition(prev, next service.Record) (Message, bool) {
	if prev.Name != next.Name || !prev.Tested() || !next.Tested() {
		return Message{}, false
	}

	up := next.IsUp()
	if prev.IsUp() == up {
		return Message{}, false
	}

	text := fmt.Sprintf("Service %s is now up!", next.Name)
	if !up {
		text = fmt.Sprintf("Service %s has gone down!", next.Name)
		if e.mention != "" {
			text += " " + e.mention
		}
	}

	return Message{
		Service: next.Name,
		Up:      up,
		Text:    text,
		Detail:  next.Live() + cardSeparator + next.ErrorText,
	}, true
}

// Observe sends the alert for prev -> next when it is an edge and a sink is
// configured. It reports whether a message was handed to the sink.
func (e *Emitter) Observe(ctx context.Context, prev, next service.Record) bool {
	if !e.Enabled() {
		return false
	}

	msg, ok := e.Transition(prev, next)
	if !ok {
		return false
	}

	if err := e.sink.SendMessage(ctx, msg.Text, msg.Detail); err != nil {
		e.logger.Debug("notification failed",
			slog.String("service", msg.Service),
			slog.String("error", err.Error()),
		)
	}
	return true
}
