package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/checkout"
	"bookstore-core/internal/order"
	"bookstore-core/internal/payment"
	"bookstore-core/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type placeOrderRequest struct {
	AddressID      string            `json:"addressId"`
	PaymentMethod  string            `json:"paymentMethod"`
	PaymentDetails map[string]string `json:"paymentDetails"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// orderResponse adds the derived lifecycle fields to an order.
type orderResponse struct {
	order.Order
	Progress             int            `json:"progress"`
	Cancellable          bool           `json:"cancellable"`
	NextPossibleStatuses []order.Status `json:"nextPossibleStatuses"`
}

func toOrderResponse(o order.Order) orderResponse {
	return orderResponse{
		Order:                o,
		Progress:             order.Progress(o.Status),
		Cancellable:          order.Cancellable(o),
		NextPossibleStatuses: order.NextPossibleStatuses(o.Status),
	}
}

// ---------- checkout ----------

func (h *handlers) checkoutSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Checkout.Quote(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if _, err := session.Require(sess); err != nil {
		writeError(w, r, err)
		return
	}

	var req placeOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}
	addressID, err := uuid.Parse(strings.TrimSpace(req.AddressID))
	if err != nil {
		writeError(w, r, checkout.ErrMissingAddress)
		return
	}

	receipt, err := h.Checkout.PlaceOrder(r.Context(), sess, checkout.PlaceOrderInput{
		AddressID:      addressID,
		PaymentMethod:  method,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":   toOrderResponse(receipt.Order),
		"payment": receipt.Payment,
	})
}

// ---------- orders ----------

// listOwnOrders lists the caller's orders, admins included.
func (h *handlers) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	userID, err := session.Require(sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.listOrders(w, r, userID)
}

func (h *handlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, r.URL.Query().Get("userId"))
}

func (h *handlers) listOrders(w http.ResponseWriter, r *http.Request, userID string) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.UserID = userID

	orders, err := h.Orders.List(r.Context(), session.FromContext(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *handlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	o, err := h.Orders.Cancel(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *handlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"), status, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// parseFilter reads ?status=a,b&limit=&offset=.
func parseFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	var f order.Filter

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := order.ParseStatus(part)
			if err != nil {
				return order.Filter{}, err
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return order.Filter{}, err
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return order.Filter{}, err
	}
	return f, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a valid number", apperr.ErrInvalidInput, raw)
	}
	return n, nil
}
