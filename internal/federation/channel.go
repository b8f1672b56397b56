package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Bus is the underlying publish/subscribe transport shared by both nodes.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
}

// Handler consumes the decoded events addressed to this node, one typed
// callback per event kind.
type Handler interface {
	HandlePlayerWaiting(ctx context.Context, event PlayerEvent)
	HandlePlayerJoined(ctx context.Context, event PlayerEvent)
	HandlePlayerLeft(ctx context.Context, event PlayerEvent)
	HandleMoveMade(ctx context.Context, event MoveEvent)
	HandleGameEnded(ctx context.Context, event EndEvent)
}

type Channel struct {
	logger *slog.Logger
	bus    Bus

	topic     string
	selfID    string
	partnerID string
}

func New(logger *slog.Logger, bus Bus, topic, selfID, partnerID string) *Channel {
	return &Channel{
		logger: logger.With("component", "federation"),
		bus:    bus,

		topic:     topic,
		selfID:    selfID,
		partnerID: partnerID,
	}
}

// Listen - subscribes to the shared topic and dispatches inbound events to
// the handler. Messages addressed to the partner are dropped silently;
// malformed ones are logged and discarded.
func (that *Channel) Listen(ctx context.Context, handler Handler) error {
	err := that.bus.Subscribe(ctx, that.topic, func(payload []byte) {
		that.dispatch(ctx, handler, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", that.topic, err)
	}

	return nil
}

func (that *Channel) NotifyWaiting(ctx context.Context, event PlayerEvent) error {
	return that.publish(ctx, EventPlayerWaiting, event.GameID, event)
}

func (that *Channel) NotifyJoined(ctx context.Context, event PlayerEvent) error {
	return that.publish(ctx, EventPlayerJoined, event.GameID, event)
}

func (that *Channel) NotifyLeft(ctx context.Context, event PlayerEvent) error {
	return that.publish(ctx, EventPlayerLeft, event.GameID, event)
}

func (that *Channel) NotifyMove(ctx context.Context, event MoveEvent) error {
	return that.publish(ctx, EventMoveMade, event.GameID, event)
}

func (that *Channel) NotifyEnded(ctx context.Context, event EndEvent) error {
	return that.publish(ctx, EventGameEnded, event.GameID, event)
}

func (that *Channel) publish(ctx context.Context, kind, gameID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	envelope := Envelope{
		Kind:       kind,
		FromNodeID: that.selfID,
		ToNodeID:   that.partnerID,
		GameID:     gameID,
		Timestamp:  time.Now(),
		Payload:    raw,
	}

	message, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", kind, err)
	}

	if err = that.bus.Publish(ctx, that.topic, message); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	return nil
}

func (that *Channel) dispatch(ctx context.Context, handler Handler, payload []byte) {
	log := that.logger.With("method", "dispatch")

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Error("failed to unmarshal envelope", "error", err)
		return
	}

	// Both nodes hear every message on the shared topic; only the addressee
	// reacts.
	if envelope.ToNodeID != that.selfID {
		return
	}

	switch envelope.Kind {
	case EventPlayerWaiting, EventPlayerJoined, EventPlayerLeft:
		var event PlayerEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			log.Error("failed to unmarshal player event", "kind", envelope.Kind, "error", err)
			return
		}

		switch envelope.Kind {
		case EventPlayerWaiting:
			handler.HandlePlayerWaiting(ctx, event)
		case EventPlayerJoined:
			handler.HandlePlayerJoined(ctx, event)
		case EventPlayerLeft:
			handler.HandlePlayerLeft(ctx, event)
		}
	case EventMoveMade:
		var event MoveEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			log.Error("failed to unmarshal move event", "error", err)
			return
		}

		handler.HandleMoveMade(ctx, event)
	case EventGameEnded:
		var event EndEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			log.Error("failed to unmarshal end event", "error", err)
			return
		}

		handler.HandleGameEnded(ctx, event)
	default:
		log.Error("unknown event kind", "kind", envelope.Kind)
	}
}
