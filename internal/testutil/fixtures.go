package testutil

import (
	"encoding/json"
	"time"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/domain/transaction"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/config"
	"github.com/google/uuid"
)

func NewTestOrder(amountCents int64, currency string) *order.Order {
	now := time.Now()
	return &order.Order{
		ID:            uuid.New(),
		OrderKey:      "wc_order_" + uuid.New().String()[:13],
		Status:        order.StatusPendingPayment,
		Total:         order.Amount{ValueCents: amountCents, Currency: currency},
		PaymentMethod: order.PaymentMethodGateway,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func NewOnHoldOrder(amountCents int64, currency, paymentID string) *order.Order {
	o := NewTestOrder(amountCents, currency)
	o.Status = order.StatusOnHold
	if paymentID != "" {
		o.PaymentID = &paymentID
	}
	return o
}

func NewTestTransaction(paymentID string, status transaction.Status, amount string, customData string) *transaction.Transaction {
	return &transaction.Transaction{
		PaymentID:  paymentID,
		Status:     status,
		Amount:     json.Number(amount),
		Currency:   "BTCN",
		StatusURL:  "https://gateway.test/tx/" + paymentID,
		CustomData: customData,
	}
}

func TestGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Enabled:         true,
		Title:           "BitcoiNote",
		Description:     "Pay your order with your BTCN coins",
		URL:             "http://gateway.test",
		Username:        "client",
		Password:        "secret",
		IPNSecret:       "test-ipn-secret",
		RequestTimeout:  5 * time.Second,
		AllowUserCancel: true,
		LockTTL:         30 * time.Second,
	}
}

func TestStoreConfig() config.StoreConfig {
	return config.StoreConfig{
		Name:          "Test Shop",
		PublicBaseURL: "http://shop.test",
	}
}
