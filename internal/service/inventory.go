package service

import (
	"context"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/rs/zerolog"
)

// LoggingInventory records stock reductions in the log. The actual stock
// mutation belongs to the host commerce platform; this stand-in keeps the
// delegation point visible without owning any inventory data.
type LoggingInventory struct {
	logger zerolog.Logger
}

// NewLoggingInventory creates a new LoggingInventory.
func NewLoggingInventory(logger zerolog.Logger) *LoggingInventory {
	return &LoggingInventory{logger: logger.With().Str("component", "inventory").Logger()}
}

// ReduceStock logs the delegation. It never fails.
func (i *LoggingInventory) ReduceStock(ctx context.Context, ord *order.Order) error {
	i.logger.Info().
		Str("order_id", ord.ID.String()).
		Str("amount", ord.Total.String()).
		Msg("stock reduction delegated to host platform")
	return nil
}
