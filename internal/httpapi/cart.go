package httpapi

import (
	"encoding/json"
	"net/http"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// ---------- cart ----------

func (h *handlers) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.Cart.View(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Clear(r.Context(), session.FromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.Cart.CartStore().Add(r.Context(), session.FromContext(r.Context()), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) changeCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.Cart.ChangeQuantity(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.CartStore().Remove(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cartEvents streams the cart view as server-sent events until the client
// goes away.
func (h *handlers) cartEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorBody{Code: "streaming_unsupported", Message: "streaming unsupported"})
		return
	}

	sub, err := h.Cart.Watch(ctx, session.FromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logger.FromCtx(ctx).With(zap.String("handler", "cartEvents"))
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				log.Error("encode cart view", zap.Error(err))
				return
			}
			if _, err := w.Write([]byte("event: cart\ndata: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ---------- wishlist ----------

func (h *handlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.Cart.Wishlist(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *handlers) clearWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.WishlistStore().ClearAll(r.Context(), session.FromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.Cart.WishlistStore().Add(r.Context(), session.FromContext(r.Context()), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) removeWishlistItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.WishlistStore().Remove(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
