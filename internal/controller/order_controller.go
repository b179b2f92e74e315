package controller

import (
	"net/http"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderController handles order-related HTTP requests against the stand-in
// host order store plus the checkout, revisit and admin reconciliation
// entry points of the payment bridge.
type OrderController struct {
	orders     order.Repository
	reconciler *service.ReconcileService
}

// NewOrderController creates a new OrderController.
func NewOrderController(orders order.Repository, reconciler *service.ReconcileService) *OrderController {
	return &OrderController{orders: orders, reconciler: reconciler}
}

// Create handles POST /api/v1/orders
func (h *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := order.NewOrder(order.Amount{
		ValueCents: floatToCents(req.Amount),
		Currency:   req.Currency,
	}, order.PaymentMethodGateway)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orders.Create(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromOrder(o))
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.loadOrder(r)
	if err != nil {
		writeError(w, err)
		return
	}

	notes, err := h.orders.GetNotes(r.Context(), o.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &OrderDetailResponse{
		OrderResponse: FromOrder(o),
		Notes:         make([]*NoteResponse, 0, len(notes)),
	}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, FromNote(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Checkout handles POST /api/v1/orders/{id}/checkout. It creates a gateway
// transaction for the order and returns the URL to send the customer to.
func (h *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	redirect, err := h.reconciler.ProcessCheckout(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{Result: "success", Redirect: redirect})
}

// Revisit handles GET /api/v1/orders/key/{orderKey}/revisit. This is the
// customer returning to the order status page; with ?complete_payment=1 it
// is an explicit request to finish payment and answers with a redirect.
func (h *OrderController) Revisit(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByKey(r.Context(), chi.URLParam(r, "orderKey"))
	if err != nil {
		writeError(w, err)
		return
	}

	completeRequested := r.URL.Query().Get("complete_payment") != ""

	result, err := h.reconciler.HandlePaymentRevisit(r.Context(), o, completeRequested)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Action == service.RevisitRedirect {
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, RevisitResponse{
		Action: string(result.Action),
		Order:  FromOrder(o),
	})
}

// AdminReconcile handles POST /admin/orders/{id}/reconcile. It forces a
// gateway poll for an on-hold order, surfacing any failure to the operator.
func (h *OrderController) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	o, err := h.loadOrder(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.reconciler.ForceReconcile(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromOrder(o))
}

func (h *OrderController) loadOrder(r *http.Request) (*order.Order, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, domainErrors.NewValidationError("id", "invalid order id")
	}
	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}
