package controller

import (
	"io"
	"net/http"

	"github.com/bitcoinote/commerce-gateway/internal/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-IPN-Signature"

// maxWebhookBody bounds IPN payload size; real deliveries are a few hundred
// bytes of JSON.
const maxWebhookBody = 1 << 20

// WebhookController handles IPN deliveries from the gateway service.
type WebhookController struct {
	reconciler *service.ReconcileService
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(reconciler *service.ReconcileService) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

// HandleIPN handles POST /webhooks/gateway. The raw body is passed through
// untouched because the signature covers its exact bytes. Any failure must
// produce a non-2xx status so the gateway's redelivery kicks in; the fixed
// "OK" body is only written after processing fully succeeded.
func (h *WebhookController) HandleIPN(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read body", Code: "bad_request"})
		return
	}

	if err := h.reconciler.HandleWebhook(r.Context(), rawBody, r.Header.Get(SignatureHeader)); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(service.WebhookAck))
}
