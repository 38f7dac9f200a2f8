package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"negotiation-service/internal/models"
	"negotiation-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes negotiation domain events. It implements
// negotiation.Events.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func negotiationKey(negotiationID string) string {
	return fmt.Sprintf("negotiation-%s", negotiationID)
}

// PublishNegotiationOpened publishes a NegotiationOpened event
func (ep *EventPublisher) PublishNegotiationOpened(ctx context.Context, event *models.NegotiationOpenedEvent) error {
	return ep.producer.PublishEvent(ctx, negotiationKey(event.NegotiationID), event)
}

// PublishOfferCountered publishes an OfferCountered event
func (ep *EventPublisher) PublishOfferCountered(ctx context.Context, event *models.OfferCounteredEvent) error {
	return ep.producer.PublishEvent(ctx, negotiationKey(event.NegotiationID), event)
}

// PublishNegotiationAccepted publishes a NegotiationAccepted event
func (ep *EventPublisher) PublishNegotiationAccepted(ctx context.Context, event *models.NegotiationAcceptedEvent) error {
	return ep.producer.PublishEvent(ctx, negotiationKey(event.NegotiationID), event)
}

// PublishNegotiationClosed publishes reject/cancel/expiry events
func (ep *EventPublisher) PublishNegotiationClosed(ctx context.Context, event *models.NegotiationClosedEvent) error {
	return ep.producer.PublishEvent(ctx, negotiationKey(event.NegotiationID), event)
}

// PublishCodeRedeemed publishes a CodeRedeemed event
func (ep *EventPublisher) PublishCodeRedeemed(ctx context.Context, event *models.CodeRedeemedEvent) error {
	return ep.producer.PublishEvent(ctx, negotiationKey(event.NegotiationID), event)
}

// EventHandler routes consumed events to registered callbacks. Used by the
// notification worker to tell sellers about buyer activity.
type EventHandler struct {
	logger         *zap.Logger
	onOpened       func(context.Context, *models.NegotiationOpenedEvent) error
	onCountered    func(context.Context, *models.OfferCounteredEvent) error
	onAccepted     func(context.Context, *models.NegotiationAcceptedEvent) error
	onClosed       func(context.Context, *models.NegotiationClosedEvent) error
	onCodeRedeemed func(context.Context, *models.CodeRedeemedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.NamedLogger("events")}
}

// OnNegotiationOpened registers a handler for NegotiationOpened events
func (eh *EventHandler) OnNegotiationOpened(handler func(context.Context, *models.NegotiationOpenedEvent) error) {
	eh.onOpened = handler
}

// OnOfferCountered registers a handler for OfferCountered events
func (eh *EventHandler) OnOfferCountered(handler func(context.Context, *models.OfferCounteredEvent) error) {
	eh.onCountered = handler
}

// OnNegotiationAccepted registers a handler for NegotiationAccepted events
func (eh *EventHandler) OnNegotiationAccepted(handler func(context.Context, *models.NegotiationAcceptedEvent) error) {
	eh.onAccepted = handler
}

// OnNegotiationClosed registers a handler for reject/cancel/expiry events
func (eh *EventHandler) OnNegotiationClosed(handler func(context.Context, *models.NegotiationClosedEvent) error) {
	eh.onClosed = handler
}

// OnCodeRedeemed registers a handler for CodeRedeemed events
func (eh *EventHandler) OnCodeRedeemed(handler func(context.Context, *models.CodeRedeemedEvent) error) {
	eh.onCodeRedeemed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeNegotiationOpened:
		if eh.onOpened != nil {
			var event models.NegotiationOpenedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal NegotiationOpened event: %w", err)
			}
			return eh.onOpened(ctx, &event)
		}

	case models.EventTypeOfferCountered:
		if eh.onCountered != nil {
			var event models.OfferCounteredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OfferCountered event: %w", err)
			}
			return eh.onCountered(ctx, &event)
		}

	case models.EventTypeNegotiationAccepted:
		if eh.onAccepted != nil {
			var event models.NegotiationAcceptedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal NegotiationAccepted event: %w", err)
			}
			return eh.onAccepted(ctx, &event)
		}

	case models.EventTypeNegotiationRejected, models.EventTypeNegotiationCancelled, models.EventTypeNegotiationExpired:
		if eh.onClosed != nil {
			var event models.NegotiationClosedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal NegotiationClosed event: %w", err)
			}
			return eh.onClosed(ctx, &event)
		}

	case models.EventTypeCodeRedeemed:
		if eh.onCodeRedeemed != nil {
			var event models.CodeRedeemedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CodeRedeemed event: %w", err)
			}
			return eh.onCodeRedeemed(ctx, &event)
		}

	default:
		eh.logger.Warn("unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
