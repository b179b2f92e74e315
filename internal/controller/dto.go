package controller

import (
	"time"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert these to domain types before calling
// business logic.

// CreateOrderRequest holds the input for creating an order in the stand-in
// host store.
type CreateOrderRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,alpha,min=3,max=4"`
}

// --- Response DTOs ---

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID            string    `json:"id"`
	OrderKey      string    `json:"order_key"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	PaymentID     *string   `json:"payment_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NoteResponse represents an audit trail entry.
type NoteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderDetailResponse is an order together with its audit trail.
type OrderDetailResponse struct {
	*OrderResponse
	Notes []*NoteResponse `json:"notes"`
}

// CheckoutResponse tells the storefront where to send the customer.
type CheckoutResponse struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect"`
}

// RevisitResponse is returned when a revisit does not redirect.
type RevisitResponse struct {
	Action string         `json:"action"`
	Order  *OrderResponse `json:"order"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromOrder converts a domain order to API response.
func FromOrder(o *order.Order) *OrderResponse {
	return &OrderResponse{
		ID:            o.ID.String(),
		OrderKey:      o.OrderKey,
		Status:        string(o.Status),
		Amount:        centsToFloat(o.Total.ValueCents),
		Currency:      o.Total.Currency,
		PaymentMethod: o.PaymentMethod,
		PaymentID:     o.PaymentID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// FromNote converts a domain note to API response.
func FromNote(n *order.Note) *NoteResponse {
	return &NoteResponse{
		ID:        n.ID.String(),
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
	}
}

// floatToCents converts a float currency amount to cents.
func floatToCents(f float64) int64 {
	return int64(f*100 + 0.5)
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
