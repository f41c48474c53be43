package checkout

import (
	"context"
	"errors"
	"time"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/notify"
	"bookstore-core/internal/order"
	"bookstore-core/internal/session"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	taskClearCart      = "clear_cart"
	taskNotifyNewOrder = "notify_new_order"
	taskIncrementSales = "increment_sales"
	taskDecrementStock = "decrement_stock"
	taskNotifyLowStock = "notify_low_stock"
)

// startSideEffects launches every post-order task in its own goroutine. The
// tasks are independent of each other and of the caller's cancellation.
// clear_cart removes only the ordered records.
func (o *Orchestrator) startSideEffects(ctx context.Context, sess *session.Session, ord order.Order, ordered []string) {
	bg := logger.WithUserID(context.WithoutCancel(ctx), ord.UserID)

	o.spawn(bg, ord.ID, taskClearCart, func(ctx context.Context) error {
		return o.cart.RemoveItems(ctx, sess, ordered)
	})

	o.spawn(bg, ord.ID, taskNotifyNewOrder, func(ctx context.Context) error {
		return o.sink.Notify(ctx, notify.Notification{
			Kind: notify.KindNewOrder,
			Payload: map[string]any{
				"orderId":     ord.ID,
				"userId":      ord.UserID,
				"finalAmount": ord.FinalAmount,
				"items":       len(ord.LineItems),
				"trackingId":  ord.TrackingID,
			},
			At: ord.CreatedAt,
		})
	})

	for _, li := range ord.LineItems {
		o.spawn(bg, ord.ID, taskIncrementSales, func(ctx context.Context) error {
			promotions, err := o.inventory.IncrementSales(ctx, ord.ID, li.ProductID, li.Quantity)
			if err != nil {
				return err
			}
			if len(promotions) > 0 {
				logger.FromCtx(ctx).Debug("sales counters incremented",
					zap.String("product_id", li.ProductID),
					zap.Strings("promotions", promotions),
				)
			}
			return nil
		})

		o.spawnStockTask(bg, ord.ID, li)
	}
}

// spawnStockTask decrements stock and, when it falls under the threshold,
// sends the low-stock alert as a separately retried step.
func (o *Orchestrator) spawnStockTask(ctx context.Context, orderID string, li order.LineItem) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		var remaining int
		err := o.attempt(ctx, orderID, taskDecrementStock, func(ctx context.Context) error {
			res, err := o.inventory.DecrementStock(ctx, orderID, li.ProductID, li.Quantity)
			if err != nil {
				return err
			}
			remaining = res.Remaining
			return nil
		})
		if err != nil || remaining >= o.cfg.LowStockThreshold {
			return
		}

		_ = o.attempt(ctx, orderID, taskNotifyLowStock, func(ctx context.Context) error {
			return o.sink.Notify(ctx, notify.Notification{
				Kind: notify.KindLowStock,
				Payload: map[string]any{
					"productId": li.ProductID,
					"title":     li.Title,
					"remaining": remaining,
					"threshold": o.cfg.LowStockThreshold,
				},
				At: o.now().UTC(),
			})
		})
	}()
}

func (o *Orchestrator) spawn(ctx context.Context, orderID, task string, op func(context.Context) error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.attempt(ctx, orderID, task, op)
	}()
}

// attempt runs op with retries. Not-found errors are not retried. A final
// failure is logged and counted, never returned to the order caller.
func (o *Orchestrator) attempt(ctx context.Context, orderID, task string, op func(context.Context) error) error {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Checkout"),
		zap.String("task", task),
		zap.String("order_id", orderID),
	)

	b := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), uint64(o.cfg.Retries)), ctx)

	err := backoff.RetryNotify(func() error {
		err := op(ctx)
		if errors.Is(err, apperr.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		o.metrics.Counter(metrics.SideEffectRetries).Inc()
		log.Warn("side effect failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		o.metrics.Counter(metrics.SideEffectFailures).Inc()
		log.Error("side effect abandoned", zap.Error(err))
		return err
	}
	return nil
}
