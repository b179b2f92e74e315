package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validateTx = validator.New()

// WebhookAck is the fixed body the gateway service expects on successful
// IPN processing. Anything else makes it redeliver.
const WebhookAck = "OK"

// HandleWebhook processes an IPN delivery. The signature is verified against
// the raw, unparsed body before anything else happens; no order is mutated
// until both the signature check and the order lookup succeed. Any error
// returned here must translate into a non-2xx response so the gateway
// retries the delivery.
func (s *ReconcileService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if err := s.verifySignature(rawBody, signature); err != nil {
		s.countWebhook("invalid_signature")
		return err
	}

	tx, err := parseWebhookTransaction(rawBody)
	if err != nil {
		s.countWebhook("malformed")
		return err
	}

	orderID, err := uuid.Parse(tx.CustomData)
	if err != nil {
		s.countWebhook("order_not_found")
		return fmt.Errorf("%w: bad customData %q", domainErrors.ErrOrderNotFound, tx.CustomData)
	}

	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.countWebhook("error")
		return err
	}
	if ord == nil {
		s.countWebhook("order_not_found")
		return fmt.Errorf("%w: %s", domainErrors.ErrOrderNotFound, orderID)
	}

	err = s.locker.WithLock(ctx, ord.ID.String(), func(ctx context.Context) error {
		// The webhook is authoritative once the signature verified: a
		// payment id mismatch means our stored id went stale, so overwrite
		// it rather than trusting it.
		if ord.PaymentID == nil || *ord.PaymentID != tx.PaymentID {
			stored := ""
			if ord.PaymentID != nil {
				stored = *ord.PaymentID
			}
			s.logger.Warn().
				Str("order_id", ord.ID.String()).
				Str("stored_payment_id", stored).
				Str("webhook_payment_id", tx.PaymentID).
				Msg("unexpected payment ID, overwriting stored value")
			if err := s.orders.SetPaymentID(ctx, ord.ID, tx.PaymentID); err != nil {
				return err
			}
			ord.SetPaymentID(tx.PaymentID)
			s.publish(ctx, Event{Type: EventPaymentIDHealed, Order: ord, Transaction: tx})
		}

		return s.ReconcileStatus(ctx, ord, tx)
	})
	if err != nil {
		s.countWebhook("error")
		return err
	}

	s.countWebhook("ok")
	return nil
}

// verifySignature checks the hex HMAC-SHA256 of the raw body against the
// supplied header value in constant time.
func (s *ReconcileService) verifySignature(rawBody []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(s.gatewayCfg.IPNSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return domainErrors.ErrInvalidSignature
	}
	if !hmac.Equal(supplied, expected) {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}

func parseWebhookTransaction(rawBody []byte) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	if err := json.Unmarshal(rawBody, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMalformedPayload, err)
	}
	if err := validateTx.Struct(&tx); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMalformedPayload, err)
	}
	return &tx, nil
}

func (s *ReconcileService) countWebhook(result string) {
	if s.metrics != nil {
		s.metrics.WebhooksTotal.WithLabelValues(result).Inc()
	}
}
