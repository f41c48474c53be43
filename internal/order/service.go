package order

import (
	"context"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/session"

	"go.uber.org/zap"
)

// Service is the caller-facing order API. Every call takes the acting session.
type Service interface {
	Get(ctx context.Context, sess *session.Session, id string) (Order, error)
	List(ctx context.Context, sess *session.Session, filter Filter) ([]Order, error)
	Cancel(ctx context.Context, sess *session.Session, id, reason string) (Order, error)
	UpdateStatus(ctx context.Context, sess *session.Session, id string, status Status, note string) (Order, error)
}

type service struct {
	store     Store
	lifecycle *Lifecycle
}

func NewService(store Store, lifecycle *Lifecycle) Service {
	return &service{store: store, lifecycle: lifecycle}
}

// Get returns an order owned by the session user. Admins may read any order.
func (s *service) Get(ctx context.Context, sess *session.Session, id string) (Order, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return Order{}, err
	}

	o, err := s.store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID && !sess.IsAdmin() {
		logger.FromCtx(ctx).Warn("order access denied",
			zap.String("service", "Order"),
			zap.String("order_id", id),
			zap.String("user_id", userID),
		)
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

// List returns the session user's orders. Admins may list across users.
func (s *service) List(ctx context.Context, sess *session.Session, filter Filter) ([]Order, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		filter.UserID = userID
	}
	return s.store.List(ctx, filter)
}

func (s *service) Cancel(ctx context.Context, sess *session.Session, id, reason string) (Order, error) {
	o, err := s.Get(ctx, sess, id)
	if err != nil {
		return Order{}, err
	}
	if !Cancellable(o) {
		return Order{}, ErrNotCancellable
	}
	return s.lifecycle.Transition(ctx, id, StatusCancelled, reason, sess.UserID)
}

func (s *service) UpdateStatus(ctx context.Context, sess *session.Session, id string, status Status, note string) (Order, error) {
	if _, err := session.Require(sess); err != nil {
		return Order{}, err
	}
	if !sess.IsAdmin() {
		return Order{}, ErrAdminOnly
	}
	return s.lifecycle.Transition(ctx, id, status, note, sess.UserID)
}
