package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/config"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/observability"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var validate = validator.New()

// CreateTransactionRequest is the wire body for POST /api/transactions.
// CustomData carries the originating order id; the gateway echoes it back
// verbatim in IPN deliveries.
type CreateTransactionRequest struct {
	Amount             json.Number `json:"amount"`
	Currency           string      `json:"currency"`
	Description        string      `json:"description"`
	CustomData         string      `json:"customData"`
	IPNURL             string      `json:"ipnUrl"`
	SuccessRedirectURL string      `json:"successRedirectUrl"`
	ErrorRedirectURL   string      `json:"errorRedirectUrl"`
	AllowUserCancel    bool        `json:"allowUserCancel"`
}

// Client performs authenticated HTTP requests against the gateway service.
// All calls go through a circuit breaker and a bounded-timeout HTTP client;
// there is deliberately no retry here, redelivery is the gateway's job.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// New creates a gateway client from the configured settings.
func New(cfg *config.GatewayConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		metrics:    metrics,
		logger:     logger.With().Str("component", "gateway_client").Logger(),
	}

	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "gateway-service",
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})

	return c
}

// CreateTransaction creates a new transaction at the gateway service.
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*transaction.Transaction, error) {
	raw, err := c.request(ctx, http.MethodPost, "/api/transactions", req, false)
	if err != nil {
		return nil, err
	}
	tx, err := c.decodeTransaction("POST /api/transactions", raw)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.TransactionsCreatedTotal.Inc()
	}
	return tx, nil
}

// GetTransaction fetches a transaction by payment id. A 404 is not an error:
// status lookups are expected to race transaction creation and expiry, so an
// unknown id yields (nil, nil).
func (c *Client) GetTransaction(ctx context.Context, paymentID string) (*transaction.Transaction, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/transactions/"+paymentID, nil, true)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return c.decodeTransaction("GET /api/transactions/{id}", raw)
}

// request performs a single authenticated call. Accepted statuses: 200/201
// (JSON body), 204 (empty), and 404 when treatNotFoundAsEmpty is set. Any
// other status, and any transport failure, becomes a GatewayError.
func (c *Client) request(ctx context.Context, method, path string, body any, treatNotFoundAsEmpty bool) (json.RawMessage, error) {
	op := method + " " + path
	start := time.Now()

	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.do(ctx, method, path, body, treatNotFoundAsEmpty)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.GatewayRequestsTotal.WithLabelValues(method, status).Inc()
		c.metrics.GatewayRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		var gwErr *domainErrors.GatewayError
		if errors.As(err, &gwErr) {
			return nil, err
		}
		// Breaker-open and other transport-level failures.
		return nil, domainErrors.NewGatewayError(op, err)
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, treatNotFoundAsEmpty bool) (json.RawMessage, error) {
	op := method + " " + path

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, domainErrors.NewGatewayError(op, fmt.Errorf("marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, domainErrors.NewGatewayError(op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainErrors.NewGatewayError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domainErrors.NewGatewayError(op, fmt.Errorf("read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return json.RawMessage(respBody), nil
	case resp.StatusCode == http.StatusNotFound && treatNotFoundAsEmpty:
		return nil, nil
	default:
		return nil, domainErrors.NewGatewayStatusError(op, resp.StatusCode, string(respBody))
	}
}

// decodeTransaction parses and validates a transaction payload. Responses
// missing required fields fail fast instead of propagating zero values.
func (c *Client) decodeTransaction(op string, raw json.RawMessage) (*transaction.Transaction, error) {
	if raw == nil {
		return nil, domainErrors.NewGatewayError(op, fmt.Errorf("empty response where transaction expected"))
	}

	var tx transaction.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, domainErrors.NewGatewayError(op, fmt.Errorf("decode transaction: %w", err))
	}
	if err := validate.Struct(&tx); err != nil {
		return nil, domainErrors.NewGatewayError(op, fmt.Errorf("invalid transaction payload: %w", err))
	}
	return &tx, nil
}
