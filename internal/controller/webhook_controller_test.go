package controller

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"github.com/bitcoinote/commerce-gateway/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerEnv struct {
	orders     *testutil.MockOrderRepository
	gw         *testutil.MockGateway
	reconciler *service.ReconcileService
}

func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	env := &controllerEnv{
		orders: testutil.NewMockOrderRepository(),
		gw:     testutil.NewMockGateway(),
	}
	env.reconciler = service.NewReconcileService(
		env.orders,
		env.gw,
		&testutil.MockInventory{},
		testutil.NoopLocker{},
		testutil.TestGatewayConfig(),
		testutil.TestStoreConfig(),
		nil,
		zerolog.Nop(),
	)
	return env
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testutil.TestGatewayConfig().IPNSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postIPN(h *WebhookController, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	h.HandleIPN(w, req)
	return w
}

func TestHandleIPN_Success(t *testing.T) {
	env := newControllerEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)
	h := NewWebhookController(env.reconciler)

	body := []byte(fmt.Sprintf(
		`{"paymentId":"P1","status":"completed","amount":10,"currency":"BTCN","customData":%q}`,
		ord.ID.String(),
	))

	w := postIPN(h, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, order.StatusCompleted, ord.Status)
}

func TestHandleIPN_InvalidSignature(t *testing.T) {
	env := newControllerEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)
	h := NewWebhookController(env.reconciler)

	body := []byte(fmt.Sprintf(
		`{"paymentId":"P1","status":"completed","amount":10,"currency":"BTCN","customData":%q}`,
		ord.ID.String(),
	))

	w := postIPN(h, body, "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEqual(t, "OK", w.Body.String())
	assert.Equal(t, order.StatusOnHold, ord.Status)
}

func TestHandleIPN_MissingSignature(t *testing.T) {
	env := newControllerEnv(t)
	h := NewWebhookController(env.reconciler)

	body := []byte(`{"paymentId":"P1","status":"completed","customData":"x"}`)
	w := postIPN(h, body, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleIPN_UnknownOrder(t *testing.T) {
	env := newControllerEnv(t)
	h := NewWebhookController(env.reconciler)

	body := []byte(`{"paymentId":"P1","status":"completed","amount":10,"currency":"BTCN","customData":"f8a7b000-0000-4000-8000-000000000000"}`)
	w := postIPN(h, body, signBody(body))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleIPN_MalformedPayload(t *testing.T) {
	env := newControllerEnv(t)
	h := NewWebhookController(env.reconciler)

	body := []byte("definitely not json")
	w := postIPN(h, body, signBody(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIPN_RedeliveryAfterFailureSucceeds(t *testing.T) {
	env := newControllerEnv(t)
	ord := testutil.NewOnHoldOrder(1000, "BTCN", "P1")
	env.orders.Seed(ord)
	h := NewWebhookController(env.reconciler)

	body := []byte(fmt.Sprintf(
		`{"paymentId":"P1","status":"completed","amount":10,"currency":"BTCN","customData":%q}`,
		ord.ID.String(),
	))

	// First delivery arrives with a broken signature and is rejected.
	w := postIPN(h, body, "00")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The gateway redelivers correctly.
	w = postIPN(h, body, signBody(body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.StatusCompleted, ord.Status)
}
