package service

import (
	"context"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/gateway"
)

// GatewayClient is the outbound port to the gateway service.
type GatewayClient interface {
	// CreateTransaction creates a transaction at the gateway service.
	CreateTransaction(ctx context.Context, req gateway.CreateTransactionRequest) (*transaction.Transaction, error)
	// GetTransaction fetches a transaction; (nil, nil) when it does not exist.
	GetTransaction(ctx context.Context, paymentID string) (*transaction.Transaction, error)
}

// Inventory is the host-side stock management hook. Stock reduction on
// completed payment is delegated to the host platform.
type Inventory interface {
	ReduceStock(ctx context.Context, ord *order.Order) error
}

// Locker serializes mutation paths per order.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
