package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/cart"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/session"

	"go.uber.org/zap"
)

const maxBodySize = 16 * 1024

type errorBody struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Warning *cart.StockWarning `json:"warning,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotLoggedIn), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "not_logged_in"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, cart.ErrExceedsStock):
		return http.StatusConflict, "exceeds_stock"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := errorBody{Code: code, Message: err.Error()}

	var warning *cart.StockWarning
	if errors.As(err, &warning) {
		body.Warning = warning
	}

	log := logger.FromCtx(r.Context()).With(
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
		body.Message = http.StatusText(status)
	} else {
		log.Debug("request rejected")
	}

	writeJSON(w, status, body)
}

// decode reads a bounded JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}
