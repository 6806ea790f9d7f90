package marketplace

import (
	"atelier/core/events"
	"atelier/core/types"
)

const (
	// EventTypeWorkCreated is emitted when a creator registers a new work.
	EventTypeWorkCreated = "marketplace.work.created"
	// EventTypeWorkPurchased is emitted when a purchase settles.
	EventTypeWorkPurchased = "marketplace.work.purchased"
	// EventTypeRoyaltyPaid is emitted alongside a purchase for the royalty leg.
	EventTypeRoyaltyPaid = "marketplace.royalty.paid"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// WorkCreatedEvent returns the structured event payload for work registration.
func WorkCreatedEvent(workID string, creator string) *types.Event {
	return &types.Event{
		Type: EventTypeWorkCreated,
		Attributes: map[string]string{
			"workId":  workID,
			"creator": creator,
		},
	}
}

// WorkPurchasedEvent returns the structured event payload for a settled purchase.
func WorkPurchasedEvent(workID string, buyer string, seller string, quantity string, totalPrice string) *types.Event {
	return &types.Event{
		Type: EventTypeWorkPurchased,
		Attributes: map[string]string{
			"workId":     workID,
			"buyer":      buyer,
			"seller":     seller,
			"quantity":   quantity,
			"totalPrice": totalPrice,
		},
	}
}

// RoyaltyPaidEvent captures the royalty leg of a settlement.
func RoyaltyPaidEvent(workID string, recipient string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeRoyaltyPaid,
		Attributes: map[string]string{
			"workId":    workID,
			"recipient": recipient,
			"amount":    amount,
		},
	}
}
