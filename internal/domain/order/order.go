package order

import (
	"fmt"
	"time"

	"github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/google/uuid"
)

// PaymentMethodGateway identifies orders paid through the BTCN gateway.
// Orders carrying a different payment method are never touched by the
// reconciler.
const PaymentMethodGateway = "btcn_gateway"

// Status represents the order status in the state machine.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusOnHold         Status = "on_hold"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Amount represents a monetary amount in the smallest currency unit.
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Decimal returns the amount as a plain decimal string without the
// currency code, the format the gateway wire protocol expects.
func (a Amount) Decimal() string {
	sign := ""
	cents := a.ValueCents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if a.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	return nil
}

// Order is the bridge's view of an order in the host commerce store.
// PaymentID references the most recently created gateway transaction;
// nil means no transaction has been created yet.
type Order struct {
	ID            uuid.UUID
	OrderKey      string
	Status        Status
	Total         Amount
	PaymentMethod string
	PaymentID     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Note is an audit trail entry attached to an order.
type Note struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Text      string
	CreatedAt time.Time
}

// NewOrder creates a new order awaiting payment.
func NewOrder(total Amount, paymentMethod string) (*Order, error) {
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if paymentMethod == "" {
		return nil, errors.NewValidationError("payment_method", "cannot be empty")
	}

	now := time.Now()
	return &Order{
		ID:            uuid.New(),
		OrderKey:      "wc_order_" + uuid.New().String()[:13],
		Status:        StatusPendingPayment,
		Total:         total,
		PaymentMethod: paymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the given status.
// On-hold orders may regenerate payment attempts indefinitely but never
// return to pending_payment.
func (o *Order) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPendingPayment: {StatusOnHold, StatusCancelled},
		StatusOnHold:         {StatusCompleted, StatusCancelled},
		StatusCompleted:      {}, // Terminal state
		StatusCancelled:      {}, // Terminal state
	}

	allowed, exists := transitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the order to a new status.
func (o *Order) TransitionTo(newStatus Status) error {
	if !o.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(o.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	return nil
}

// SetPaymentID overwrites the stored gateway payment id. The most recently
// created transaction is always authoritative.
func (o *Order) SetPaymentID(paymentID string) {
	o.PaymentID = &paymentID
	o.UpdatedAt = time.Now()
}

// HasPaymentID reports whether a gateway transaction was created for this order.
func (o *Order) HasPaymentID() bool {
	return o.PaymentID != nil && *o.PaymentID != ""
}

// IsTerminal checks if the order is in a terminal state.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}
