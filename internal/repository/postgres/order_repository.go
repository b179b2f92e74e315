package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository implements order.Repository using PostgreSQL. It stands in
// for the host commerce platform's order storage.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders
		 (id, order_key, status, amount, currency, payment_method, payment_id, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.OrderKey, string(o.Status), centsToNumericString(o.Total.ValueCents),
		o.Total.Currency, o.PaymentMethod, o.PaymentID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateOrderKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT id, order_key, status, amount, currency, payment_method, payment_id, created_at, updated_at
		 FROM orders WHERE id = $1`, id))
}

// GetByKey retrieves an order by its opaque customer-facing key.
func (r *OrderRepository) GetByKey(ctx context.Context, key string) (*order.Order, error) {
	o, err := r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT id, order_key, status, amount, currency, payment_method, payment_id, created_at, updated_at
		 FROM orders WHERE order_key = $1`, key))
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domainErrors.ErrOrderKeyNotFound
	}
	return o, nil
}

// SetPaymentID stores the gateway payment id on the order.
func (r *OrderRepository) SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_id = $2, updated_at = now() WHERE id = $1`,
		id, paymentID,
	)
	if err != nil {
		return fmt.Errorf("set payment id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOrderNotFound
	}
	return nil
}

// UpdateStatus conditionally transitions an order. The WHERE clause on the
// current status makes the read-modify-write a compare-and-swap: when two
// deliveries race, only one sees a row affected.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddNote appends an audit trail note.
func (r *OrderRepository) AddNote(ctx context.Context, note *order.Note) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_notes (id, order_id, note, created_at) VALUES ($1,$2,$3,$4)`,
		note.ID, note.OrderID, note.Text, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order note: %w", err)
	}
	return nil
}

// GetNotes retrieves the audit trail for an order, oldest first.
func (r *OrderRepository) GetNotes(ctx context.Context, orderID uuid.UUID) ([]*order.Note, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, note, created_at FROM order_notes
		 WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order notes: %w", err)
	}
	defer rows.Close()

	var notes []*order.Note
	for rows.Next() {
		n := &order.Note{}
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ListByStatus lists orders in the given status, oldest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_key, status, amount, currency, payment_method, payment_id, created_at, updated_at
		 FROM orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := r.scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) scanOrder(row pgx.Row) (*order.Order, error) {
	o, err := r.scanOrderRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *OrderRepository) scanOrderRow(row scanner) (*order.Order, error) {
	var (
		o         order.Order
		status    string
		amountStr string
	)
	if err := row.Scan(
		&o.ID, &o.OrderKey, &status, &amountStr, &o.Total.Currency,
		&o.PaymentMethod, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	cents, err := numericStringToCents(amountStr)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = order.Status(status)
	o.Total.ValueCents = cents
	return &o, nil
}
