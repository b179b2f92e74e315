package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"github.com/bitcoinote/commerce-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testutil.TestGatewayConfig().IPNSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func completedIPN(paymentID, customData string) []byte {
	return []byte(fmt.Sprintf(
		`{"paymentId":%q,"status":"completed","amount":10,"currency":"BTCN","customData":%q}`,
		paymentID, customData,
	))
}

func TestHandleWebhook_CompletesOrder(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)

	body := completedIPN("P1", ord.ID.String())
	require.NoError(t, env.svc.HandleWebhook(context.Background(), body, sign(body)))

	assert.Equal(t, order.StatusCompleted, ord.Status)

	texts := noteTexts(t, env, ord.ID)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "P1")
	assert.Contains(t, texts[0], "10")
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)

	body := completedIPN("P1", ord.ID.String())
	sig := []byte(sign(body))
	sig[0] ^= 1 // flip one hex digit

	err := env.svc.HandleWebhook(context.Background(), body, string(sig))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
	assert.Equal(t, order.StatusOnHold, ord.Status)
}

func TestHandleWebhook_NonHexSignature(t *testing.T) {
	env := newTestEnv(t)

	body := completedIPN("P1", "whatever")
	err := env.svc.HandleWebhook(context.Background(), body, "not-hex!")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
}

func TestHandleWebhook_SignedBodyMismatch(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)

	// Signature of a different body must not verify.
	body := completedIPN("P1", ord.ID.String())
	other := completedIPN("P2", ord.ID.String())

	err := env.svc.HandleWebhook(context.Background(), body, sign(other))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
}

func TestHandleWebhook_MalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("not json at all")},
		{"missing payment id", []byte(`{"status":"completed","customData":"x"}`)},
		{"missing status", []byte(`{"paymentId":"P1","customData":"x"}`)},
		{"unknown status", []byte(`{"paymentId":"P1","status":"paid","customData":"x"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.HandleWebhook(context.Background(), tt.body, sign(tt.body))
			assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
		})
	}
}

func TestHandleWebhook_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	// Valid uuid, no such order.
	body := completedIPN("P1", "b4b5a1d0-0000-4000-8000-000000000000")
	err := env.svc.HandleWebhook(context.Background(), body, sign(body))
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotFound)

	// customData that is not a uuid at all.
	body = completedIPN("P1", "garbage")
	err = env.svc.HandleWebhook(context.Background(), body, sign(body))
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotFound)
}

func TestHandleWebhook_HealsStalePaymentID(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P-stale")
	env.orders.Seed(ord)

	body := completedIPN("P-fresh", ord.ID.String())
	require.NoError(t, env.svc.HandleWebhook(context.Background(), body, sign(body)))

	assert.Equal(t, "P-fresh", *ord.PaymentID)
	assert.Equal(t, order.StatusCompleted, ord.Status)

	var healed bool
	for _, evt := range env.events.Events() {
		if evt.Type == service.EventPaymentIDHealed {
			healed = true
		}
	}
	assert.True(t, healed)
}

func TestHandleWebhook_DuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)

	body := completedIPN("P1", ord.ID.String())
	require.NoError(t, env.svc.HandleWebhook(context.Background(), body, sign(body)))
	require.NoError(t, env.svc.HandleWebhook(context.Background(), body, sign(body)))

	assert.Equal(t, order.StatusCompleted, ord.Status)
	assert.Len(t, env.inventory.Calls, 1)
	assert.Len(t, noteTexts(t, env, ord.ID), 1)
}

func TestHandleWebhook_PendingStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)

	body := []byte(fmt.Sprintf(
		`{"paymentId":"P1","status":"pending","amount":10,"currency":"BTCN","customData":%q}`,
		ord.ID.String(),
	))
	require.NoError(t, env.svc.HandleWebhook(context.Background(), body, sign(body)))

	assert.Equal(t, order.StatusOnHold, ord.Status)
	assert.Empty(t, env.inventory.Calls)
}

func TestWebhookAck(t *testing.T) {
	assert.Equal(t, "OK", service.WebhookAck)
}
