package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface to the host commerce order store.
// The bridge does not own order persistence; everything here maps onto
// whatever storage the host platform provides.
type Repository interface {
	// Create creates a new order
	Create(ctx context.Context, o *Order) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetByKey retrieves an order by its opaque customer-facing key
	GetByKey(ctx context.Context, key string) (*Order, error)

	// SetPaymentID stores the gateway payment id on the order
	SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error

	// UpdateStatus conditionally transitions an order from one status to
	// another. It reports whether the transition was applied, so that a
	// second identical transition is a harmless no-op.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)

	// AddNote appends an audit trail note to an order
	AddNote(ctx context.Context, note *Note) error

	// GetNotes retrieves the audit trail for an order
	GetNotes(ctx context.Context, orderID uuid.UUID) ([]*Note, error)

	// ListByStatus lists orders in the given status, oldest first
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Order, error)
}
