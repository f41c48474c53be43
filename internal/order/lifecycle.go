package order

import (
	"context"
	"fmt"
	"time"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"

	"go.uber.org/zap"
)

// Lifecycle applies status transitions and appends their history entries.
type Lifecycle struct {
	store Store
	now   func() time.Time
}

func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store, now: time.Now}
}

// Transition moves the order to status to. An empty note is replaced by the
// status's default note. Exactly one history entry is appended.
func (l *Lifecycle) Transition(ctx context.Context, orderID string, to Status, note, updatedBy string) (Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "OrderLifecycle"),
		zap.String("method", "Transition"),
		zap.String("order_id", orderID),
		zap.String("to", string(to)),
	)

	if !to.Valid() {
		return Order{}, ErrUnknownStatus
	}

	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	if !CanTransition(o.Status, to) {
		log.Info("transition rejected", zap.String("from", string(o.Status)))
		return Order{}, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, o.Status, to)
	}

	if note == "" {
		note = AutoNote(to)
	}

	now := l.now().UTC()
	o.Status = to
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    to,
		Timestamp: now,
		Note:      note,
		UpdatedBy: updatedBy,
	})
	o.PaymentStatus = paymentStatusAfter(o, to)
	o.UpdatedAt = now

	out, err := l.store.Update(ctx, orderID, o)
	if err != nil {
		log.Error("failed to persist transition", zap.Error(err))
		return Order{}, err
	}

	log.Info("order status changed", zap.String("payment_status", string(out.PaymentStatus)))
	return out, nil
}

// paymentStatusAfter settles cash on delivery at delivery and marks paid
// orders refunded when they are cancelled or returned.
func paymentStatusAfter(o Order, to Status) PaymentStatus {
	switch {
	case to == StatusDelivered && o.PaymentMethod.IsCashOnDelivery():
		return PaymentStatusPaid
	case (to == StatusCancelled || to == StatusReturned) && o.PaymentStatus == PaymentStatusPaid:
		return PaymentStatusRefunded
	}
	return o.PaymentStatus
}
