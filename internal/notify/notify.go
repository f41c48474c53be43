// Package notify delivers fire-and-forget admin notifications.
package notify

import (
	"context"
	"errors"
	"time"

	"bookstore-core/internal/logger"

	"go.uber.org/zap"
)

type Kind string

const (
	KindNewOrder Kind = "new_order"
	KindLowStock Kind = "low_stock"
)

type Notification struct {
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, n Notification) error {
	logger.FromCtx(ctx).Info("admin notification",
		zap.String("kind", string(n.Kind)),
		zap.Any("payload", n.Payload),
	)
	return nil
}

// FanOut delivers to every sink and joins their errors.
type FanOut []Sink

func (f FanOut) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
