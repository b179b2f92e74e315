package transaction

import "encoding/json"

// Status represents the gateway transaction status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Transaction is an ephemeral view of a transaction held by the gateway
// service. The gateway owns the record; this struct only mirrors the JSON
// it returns. CustomData carries the originating order id and is the only
// correlation key between webhook deliveries and orders, so it must
// round-trip exactly as sent.
type Transaction struct {
	PaymentID  string      `json:"paymentId" validate:"required"`
	Status     Status      `json:"status" validate:"required,oneof=pending completed cancelled expired"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	StatusURL  string      `json:"statusUrl"`
	CustomData string      `json:"customData"`
}

// IsTerminal reports whether the transaction can still change state.
// A transaction becomes immutable once it leaves pending; cancelled or
// expired transactions are never reused.
func (t *Transaction) IsTerminal() bool {
	return t.Status != StatusPending
}

// IsReusable reports whether a customer can still be redirected to this
// transaction to finish payment.
func (t *Transaction) IsReusable() bool {
	return t.Status == StatusPending
}
