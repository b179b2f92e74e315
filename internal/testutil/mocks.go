package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/gateway"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"github.com/google/uuid"
)

// --- Order Repository Mock ---

// MockOrderRepository is an in-memory implementation of order.Repository.
// Every method can be overridden per test via the corresponding Func field.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
	byKey  map[string]*order.Order
	notes  map[uuid.UUID][]*order.Note

	CreateFunc       func(ctx context.Context, o *order.Order) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetByKeyFunc     func(ctx context.Context, key string) (*order.Order, error)
	SetPaymentIDFunc func(ctx context.Context, id uuid.UUID, paymentID string) error
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, from, to order.Status) (bool, error)
	AddNoteFunc      func(ctx context.Context, note *order.Note) error
	GetNotesFunc     func(ctx context.Context, orderID uuid.UUID) ([]*order.Note, error)
	ListByStatusFunc func(ctx context.Context, status order.Status, limit int) ([]*order.Order, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*order.Order),
		byKey:  make(map[string]*order.Order),
		notes:  make(map[uuid.UUID][]*order.Note),
	}
}

// Seed stores an order directly, bypassing Create overrides.
func (m *MockOrderRepository) Seed(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	m.byKey[o.OrderKey] = o
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[o.OrderKey]; exists {
		return errors.ErrDuplicateOrderKey
	}
	m.orders[o.ID] = o
	m.byKey[o.OrderKey] = o
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id], nil
}

func (m *MockOrderRepository) GetByKey(ctx context.Context, key string) (*order.Order, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byKey[key]
	if !ok {
		return nil, errors.ErrOrderKeyNotFound
	}
	return o, nil
}

func (m *MockOrderRepository) SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error {
	if m.SetPaymentIDFunc != nil {
		return m.SetPaymentIDFunc(ctx, id, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return errors.ErrOrderNotFound
	}
	o.PaymentID = &paymentID
	return nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to order.Status) (bool, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, errors.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *MockOrderRepository) AddNote(ctx context.Context, note *order.Note) error {
	if m.AddNoteFunc != nil {
		return m.AddNoteFunc(ctx, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[note.OrderID] = append(m.notes[note.OrderID], note)
	return nil
}

func (m *MockOrderRepository) GetNotes(ctx context.Context, orderID uuid.UUID) ([]*order.Note, error) {
	if m.GetNotesFunc != nil {
		return m.GetNotesFunc(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[orderID], nil
}

func (m *MockOrderRepository) ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error) {
	if m.ListByStatusFunc != nil {
		return m.ListByStatusFunc(ctx, status, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*order.Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Gateway Client Mock ---

// MockGateway is a mock implementation of service.GatewayClient.
type MockGateway struct {
	mu           sync.Mutex
	transactions map[string]*transaction.Transaction
	created      int

	CreateTransactionFunc func(ctx context.Context, req gateway.CreateTransactionRequest) (*transaction.Transaction, error)
	GetTransactionFunc    func(ctx context.Context, paymentID string) (*transaction.Transaction, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{transactions: make(map[string]*transaction.Transaction)}
}

// Seed registers a transaction for lookup by payment id.
func (m *MockGateway) Seed(tx *transaction.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.PaymentID] = tx
}

// CreatedCount reports how many transactions the default CreateTransaction
// produced.
func (m *MockGateway) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *MockGateway) CreateTransaction(ctx context.Context, req gateway.CreateTransactionRequest) (*transaction.Transaction, error) {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	tx := &transaction.Transaction{
		PaymentID:  uuid.New().String(),
		Status:     transaction.StatusPending,
		Amount:     req.Amount,
		Currency:   req.Currency,
		StatusURL:  "https://gateway.test/tx/" + uuid.New().String(),
		CustomData: req.CustomData,
	}
	m.transactions[tx.PaymentID] = tx
	return tx, nil
}

func (m *MockGateway) GetTransaction(ctx context.Context, paymentID string) (*transaction.Transaction, error) {
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions[paymentID], nil
}

// --- Locker ---

// NoopLocker runs the callback without any locking.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// FailingLocker always fails to acquire.
type FailingLocker struct{}

func (FailingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return errors.ErrLockAcquisitionFailed
}

// --- Inventory ---

// MockInventory records stock reduction calls.
type MockInventory struct {
	mu    sync.Mutex
	Calls []uuid.UUID

	ReduceStockFunc func(ctx context.Context, ord *order.Order) error
}

func (m *MockInventory) ReduceStock(ctx context.Context, ord *order.Order) error {
	if m.ReduceStockFunc != nil {
		return m.ReduceStockFunc(ctx, ord)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ord.ID)
	return nil
}

// --- Event recording ---

// RecordingSubscriber captures published events for assertions.
type RecordingSubscriber struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *RecordingSubscriber) Notify(ctx context.Context, evt service.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *RecordingSubscriber) Events() []service.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]service.Event, len(r.events))
	copy(out, r.events)
	return out
}
