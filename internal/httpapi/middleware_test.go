package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/cart"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/order"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	resolver := session.NewJWTResolver("test-secret")
	token, err := resolver.Issue(session.Session{UserID: "u-1", Email: "u@example.com", Role: session.RoleUser}, time.Hour)
	require.NoError(t, err)

	var got *session.Session
	var loggedUser string
	h := Authenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
		loggedUser = logger.UserIDFrom(r.Context())
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantID  string
	}{
		{name: "bearer header", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, wantID: "u-1"},
		{name: "cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }, wantID: "u-1"},
		{name: "anonymous", prepare: func(r *http.Request) {}},
		{name: "garbage token", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, loggedUser = nil, ""
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			tt.prepare(req)

			h.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.UserID)
			assert.Equal(t, tt.wantID, loggedUser)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(sess *session.Session) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		if sess != nil {
			req = req.WithContext(session.WithSession(req.Context(), sess))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(nil))
	assert.Equal(t, http.StatusForbidden, send(&session.Session{UserID: "u-1", Role: session.RoleUser}))
	assert.Equal(t, http.StatusNoContent, send(&session.Session{UserID: "root", Role: session.RoleAdmin}))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not logged in", apperr.ErrNotLoggedIn, http.StatusUnauthorized},
		{"forbidden", order.ErrAdminOnly, http.StatusForbidden},
		{"stock warning", &cart.StockWarning{ProductID: "b1", Requested: 3, Available: 2}, http.StatusConflict},
		{"duplicate", reference.ErrAlreadyListed, http.StatusConflict},
		{"missing", order.ErrOrderNotFound, http.StatusNotFound},
		{"empty cart", apperr.ErrEmptyCart, http.StatusBadRequest},
		{"transition", order.ErrNotCancellable, http.StatusConflict},
		{"bad input", reference.ErrInvalidQuantity, http.StatusUnprocessableEntity},
		{"upstream", apperr.Upstream("list", errors.New("dial tcp")), http.StatusBadGateway},
		{"product unavailable", cart.ErrProductUnavailable, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}
