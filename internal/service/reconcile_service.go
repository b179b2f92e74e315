package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/gateway"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/config"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RevisitAction tells the caller what to do after a payment revisit.
type RevisitAction string

const (
	RevisitNone     RevisitAction = "none"
	RevisitRedirect RevisitAction = "redirect"
)

// RevisitResult is the outcome of HandlePaymentRevisit.
type RevisitResult struct {
	Action      RevisitAction
	RedirectURL string
}

// ReconcileService drives the order-payment reconciliation state machine:
// pending_payment -> on_hold -> completed, with on_hold able to regenerate
// a fresh payment attempt whenever the underlying transaction is cancelled
// or expired.
type ReconcileService struct {
	orders      order.Repository
	gw          GatewayClient
	inventory   Inventory
	locker      Locker
	gatewayCfg  config.GatewayConfig
	storeCfg    config.StoreConfig
	metrics     *observability.Metrics
	logger      zerolog.Logger
	subscribers []Subscriber
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	orders order.Repository,
	gw GatewayClient,
	inventory Inventory,
	locker Locker,
	gatewayCfg config.GatewayConfig,
	storeCfg config.StoreConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ReconcileService {
	return &ReconcileService{
		orders:     orders,
		gw:         gw,
		inventory:  inventory,
		locker:     locker,
		gatewayCfg: gatewayCfg,
		storeCfg:   storeCfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// Subscribe registers a subscriber for order lifecycle events. Must be
// called during startup, before the service handles requests.
func (s *ReconcileService) Subscribe(sub Subscriber) {
	s.subscribers = append(s.subscribers, sub)
}

func (s *ReconcileService) publish(ctx context.Context, evt Event) {
	for _, sub := range s.subscribers {
		sub.Notify(ctx, evt)
	}
}

// ProcessCheckout initiates payment for an order at checkout time. It
// creates a gateway transaction and returns the URL the customer should be
// redirected to.
func (s *ReconcileService) ProcessCheckout(ctx context.Context, orderID uuid.UUID) (string, error) {
	if !s.gatewayCfg.Enabled {
		return "", domainErrors.ErrGatewayDisabled
	}

	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if ord == nil {
		return "", domainErrors.ErrOrderNotFound
	}

	tx, err := s.CreateTransaction(ctx, ord)
	if err != nil {
		return "", err
	}
	return tx.StatusURL, nil
}

// CreateTransaction creates a fresh gateway transaction for an order,
// stores its payment id on the order, moves the order to on-hold and writes
// an audit note. The stored payment id always references the most recently
// created transaction.
func (s *ReconcileService) CreateTransaction(ctx context.Context, ord *order.Order) (*transaction.Transaction, error) {
	req := gateway.CreateTransactionRequest{
		Amount:             json.Number(ord.Total.Decimal()),
		Currency:           ord.Total.Currency,
		Description:        fmt.Sprintf("%s Order #%s", s.storeCfg.Name, ord.ID),
		CustomData:         ord.ID.String(),
		IPNURL:             s.storeCfg.IPNCallbackURL(),
		SuccessRedirectURL: s.storeCfg.OrderReceivedURL(ord.OrderKey),
		ErrorRedirectURL:   s.storeCfg.OrderReceivedURL(ord.OrderKey),
		AllowUserCancel:    s.gatewayCfg.AllowUserCancel,
	}

	tx, err := s.gw.CreateTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetPaymentID(ctx, ord.ID, tx.PaymentID); err != nil {
		return nil, err
	}
	ord.SetPaymentID(tx.PaymentID)

	noteText := "New gateway transaction created, payment ID: " + tx.PaymentID
	if ord.Status == order.StatusPendingPayment {
		applied, err := s.orders.UpdateStatus(ctx, ord.ID, order.StatusPendingPayment, order.StatusOnHold)
		if err != nil {
			return nil, err
		}
		if applied {
			ord.Status = order.StatusOnHold
			noteText = "Awaiting BTCN payment, payment ID: " + tx.PaymentID
		}
	}

	if err := s.addNote(ctx, ord.ID, noteText); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", ord.ID.String()).
		Str("payment_id", tx.PaymentID).
		Msg("gateway transaction created")
	s.publish(ctx, Event{Type: EventOrderOnHold, Order: ord, Transaction: tx})

	return tx, nil
}

// ReconcileStatus applies a completed gateway transaction to an order. Only
// the on_hold -> completed edge mutates anything; the conditional status
// update makes a second identical call a harmless no-op, so webhook delivery
// and polling can race freely. Cancelled and expired transactions never
// reach here, they are handled by re-creation.
func (s *ReconcileService) ReconcileStatus(ctx context.Context, ord *order.Order, tx *transaction.Transaction) error {
	if tx == nil || tx.Status != transaction.StatusCompleted {
		return nil
	}
	if ord.Status != order.StatusOnHold {
		s.countReconciliation("skipped")
		return nil
	}

	applied, err := s.orders.UpdateStatus(ctx, ord.ID, order.StatusOnHold, order.StatusCompleted)
	if err != nil {
		return err
	}
	if !applied {
		// Another delivery won the transition; nothing left to do.
		s.countReconciliation("noop")
		return nil
	}
	ord.Status = order.StatusCompleted

	if err := s.inventory.ReduceStock(ctx, ord); err != nil {
		// The order is already paid; stock mismatch is for a human to fix.
		s.logger.Error().Err(err).Str("order_id", ord.ID.String()).Msg("stock reduction failed")
	}

	note := fmt.Sprintf("BTCN payment successful, payment ID: %s (%s BTCN)", tx.PaymentID, tx.Amount)
	if err := s.addNote(ctx, ord.ID, note); err != nil {
		return err
	}

	s.countReconciliation("completed")
	s.logger.Info().
		Str("order_id", ord.ID.String()).
		Str("payment_id", tx.PaymentID).
		Str("amount", tx.Amount.String()).
		Msg("order completed")
	s.publish(ctx, Event{Type: EventOrderCompleted, Order: ord, Transaction: tx})

	return nil
}

// HandlePaymentRevisit runs when a customer returns to the order status
// page. It polls the gateway as a fallback for missed webhooks and, when the
// customer explicitly asked to complete payment, produces a redirect to a
// pending transaction or to a freshly created one.
//
// Failures are swallowed and logged unless completion was explicitly
// requested, in which case they surface to the interactive caller.
func (s *ReconcileService) HandlePaymentRevisit(ctx context.Context, ord *order.Order, completeRequested bool) (*RevisitResult, error) {
	if ord.PaymentMethod != order.PaymentMethodGateway || ord.Status != order.StatusOnHold {
		return &RevisitResult{Action: RevisitNone}, nil
	}

	var result *RevisitResult
	err := s.locker.WithLock(ctx, ord.ID.String(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = s.revisit(ctx, ord, completeRequested)
		return innerErr
	})
	if err != nil {
		if completeRequested {
			return nil, err
		}
		s.logger.Error().Err(err).Str("order_id", ord.ID.String()).Msg("transaction verification failed")
		return &RevisitResult{Action: RevisitNone}, nil
	}
	return result, nil
}

func (s *ReconcileService) revisit(ctx context.Context, ord *order.Order, completeRequested bool) (*RevisitResult, error) {
	var tx *transaction.Transaction
	if ord.HasPaymentID() {
		var err error
		tx, err = s.gw.GetTransaction(ctx, *ord.PaymentID)
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.Warn().Str("order_id", ord.ID.String()).Msg("no payment ID found for on-hold order")
	}

	if tx != nil && tx.Status == transaction.StatusCompleted {
		if err := s.ReconcileStatus(ctx, ord, tx); err != nil {
			return nil, err
		}
		return &RevisitResult{Action: RevisitNone}, nil
	}

	if completeRequested {
		if tx != nil && tx.IsReusable() {
			return &RevisitResult{Action: RevisitRedirect, RedirectURL: tx.StatusURL}, nil
		}
		// No transaction, or it was cancelled/expired; stale transactions
		// are never reused.
		fresh, err := s.CreateTransaction(ctx, ord)
		if err != nil {
			return nil, err
		}
		return &RevisitResult{Action: RevisitRedirect, RedirectURL: fresh.StatusURL}, nil
	}

	return &RevisitResult{Action: RevisitNone}, nil
}

// ForceReconcile polls the gateway for the order's stored transaction and
// applies a completed result. Unlike the customer revisit path, errors
// surface to the caller; this backs the operator-triggered fallback.
func (s *ReconcileService) ForceReconcile(ctx context.Context, ord *order.Order) error {
	if ord.PaymentMethod != order.PaymentMethodGateway || ord.Status != order.StatusOnHold {
		return nil
	}
	return s.locker.WithLock(ctx, ord.ID.String(), func(ctx context.Context) error {
		_, err := s.revisit(ctx, ord, false)
		return err
	})
}

// ReconcileStale polls the gateway for a batch of on-hold orders. It is the
// non-interactive counterpart of HandlePaymentRevisit used by the sweeper:
// it only ever reconciles completed transactions, never creates new ones.
func (s *ReconcileService) ReconcileStale(ctx context.Context, batchSize int) (int, error) {
	orders, err := s.orders.ListByStatus(ctx, order.StatusOnHold, batchSize)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, ord := range orders {
		if ord.PaymentMethod != order.PaymentMethodGateway || !ord.HasPaymentID() {
			s.countSweep("skipped")
			continue
		}
		if _, err := s.HandlePaymentRevisit(ctx, ord, false); err != nil {
			s.countSweep("error")
			continue
		}
		if ord.Status == order.StatusCompleted {
			reconciled++
			s.countSweep("completed")
		} else {
			s.countSweep("pending")
		}
	}
	return reconciled, nil
}

func (s *ReconcileService) addNote(ctx context.Context, orderID uuid.UUID, text string) error {
	return s.orders.AddNote(ctx, &order.Note{
		ID:        uuid.New(),
		OrderID:   orderID,
		Text:      text,
		CreatedAt: time.Now(),
	})
}

func (s *ReconcileService) countReconciliation(outcome string) {
	if s.metrics != nil {
		s.metrics.ReconciliationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *ReconcileService) countSweep(outcome string) {
	if s.metrics != nil {
		s.metrics.SweeperOrdersChecked.WithLabelValues(outcome).Inc()
	}
}
