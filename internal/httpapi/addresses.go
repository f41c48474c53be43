package httpapi

import (
	"net/http"

	"bookstore-core/internal/address"
	"bookstore-core/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *handlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Addresses.List(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*address.Address{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"addresses": list})
}

func (h *handlers) createAddress(w http.ResponseWriter, r *http.Request) {
	var in address.CreateAddressInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	addr, err := h.Addresses.Create(r.Context(), session.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addr)
}

func (h *handlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := addressID(w, r)
	if !ok {
		return
	}
	if err := h.Addresses.Delete(r.Context(), session.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := addressID(w, r)
	if !ok {
		return
	}
	if err := h.Addresses.SetDefaultAddress(r.Context(), session.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func addressID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, address.ErrAddressNotFound)
		return uuid.Nil, false
	}
	return id, true
}
