package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.GatewayConfig{
		URL:            srv.URL,
		Username:       "merchant",
		Password:       "s3cret",
		RequestTimeout: 2 * time.Second,
	}
	return New(cfg, nil, zerolog.Nop())
}

func TestClient_CreateTransaction(t *testing.T) {
	var gotBody CreateTransactionRequest

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "merchant", user)
		assert.Equal(t, "s3cret", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"paymentId":  "P1",
			"status":     "pending",
			"amount":     json.Number("10.00"),
			"currency":   "BTCN",
			"statusUrl":  "https://gw/tx/P1",
			"customData": "order-123",
		})
	})

	tx, err := c.CreateTransaction(context.Background(), CreateTransactionRequest{
		Amount:     json.Number("10.00"),
		Currency:   "BTCN",
		CustomData: "order-123",
		IPNURL:     "https://shop/webhooks/gateway",
	})
	require.NoError(t, err)

	assert.Equal(t, "P1", tx.PaymentID)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, "https://gw/tx/P1", tx.StatusURL)
	assert.Equal(t, "order-123", gotBody.CustomData)
	assert.Equal(t, json.Number("10.00"), gotBody.Amount)
	assert.Equal(t, "https://shop/webhooks/gateway", gotBody.IPNURL)
}

func TestClient_GetTransaction_NotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	tx, err := c.GetTransaction(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestClient_GetTransaction_ServerError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := c.GetTransaction(context.Background(), "P1")
	require.Error(t, err)

	var gwErr *domainErrors.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusInternalServerError, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "boom")
}

func TestClient_CreateTransaction_MissingFields(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		// No paymentId: the response must be rejected instead of yielding
		// a transaction with zero values.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"pending"}`))
	})

	_, err := c.CreateTransaction(context.Background(), CreateTransactionRequest{})
	require.Error(t, err)

	var gwErr *domainErrors.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}

func TestClient_CreateTransaction_InvalidStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"paymentId":"P1","status":"weird"}`))
	})

	_, err := c.CreateTransaction(context.Background(), CreateTransactionRequest{})
	assert.Error(t, err)
}

func TestClient_CreateTransaction_BadJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	})

	_, err := c.CreateTransaction(context.Background(), CreateTransactionRequest{})
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.GatewayConfig{
		URL:            srv.URL,
		RequestTimeout: 50 * time.Millisecond,
	}
	c := New(cfg, nil, zerolog.Nop())

	_, err := c.GetTransaction(context.Background(), "P1")
	require.Error(t, err)

	var gwErr *domainErrors.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}
