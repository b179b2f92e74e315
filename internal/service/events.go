package service

import (
	"context"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/rs/zerolog"
)

// EventType identifies an order lifecycle event.
type EventType string

const (
	EventOrderOnHold     EventType = "order.on_hold"
	EventOrderCompleted  EventType = "order.completed"
	EventPaymentIDHealed EventType = "order.payment_id_healed"
)

// Event carries an order transition to registered subscribers. Subscribers
// replace the host platform's hook/filter registry: they are explicit,
// registered at startup, and never mutate the order.
type Event struct {
	Type        EventType
	Order       *order.Order
	Transaction *transaction.Transaction
}

// Subscriber receives order lifecycle events.
type Subscriber interface {
	Notify(ctx context.Context, evt Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, evt Event)

func (f SubscriberFunc) Notify(ctx context.Context, evt Event) { f(ctx, evt) }

// LoggingSubscriber writes an audit log line per event. It stands in for
// the customer-notification side effects owned by the host platform.
func LoggingSubscriber(logger zerolog.Logger, instructions string) Subscriber {
	return SubscriberFunc(func(ctx context.Context, evt Event) {
		e := logger.Info().
			Str("event", string(evt.Type)).
			Str("order_id", evt.Order.ID.String()).
			Str("order_status", string(evt.Order.Status))
		if evt.Transaction != nil {
			e = e.Str("payment_id", evt.Transaction.PaymentID)
		}
		if evt.Type == EventOrderOnHold && instructions != "" {
			e = e.Str("instructions", instructions)
		}
		e.Msg("order event")
	})
}
