// Package hydrate attaches catalog product details to reference records.
package hydrate

import (
	"context"
	"time"

	"bookstore-core/internal/catalog"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/reference"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Hydrated is a reference record with the product snapshot captured at
// hydration time.
type Hydrated struct {
	reference.Record
	Product    catalog.Product `json:"product"`
	HydratedAt time.Time       `json:"hydratedAt"`
}

type Hydrator struct {
	lookup  catalog.Lookup
	limit   int
	metrics *metrics.Registry
	now     func() time.Time
}

type Option func(*Hydrator)

// WithConcurrency bounds the number of in-flight lookups per hydration.
func WithConcurrency(n int) Option {
	return func(h *Hydrator) {
		if n > 0 {
			h.limit = n
		}
	}
}

func WithMetrics(r *metrics.Registry) Option {
	return func(h *Hydrator) { h.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hydrator) { h.now = now }
}

func NewHydrator(lookup catalog.Lookup, opts ...Option) *Hydrator {
	h := &Hydrator{lookup: lookup, limit: defaultConcurrency, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hydrate looks up every record concurrently and returns the records whose
// lookup succeeded, in input order. A failed lookup is logged and dropped.
// The result is computed from scratch on every call.
func (h *Hydrator) Hydrate(ctx context.Context, refs []reference.Record) []Hydrated {
	if len(refs) == 0 {
		return []Hydrated{}
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Hydrator"),
		zap.String("method", "Hydrate"),
	)
	timer := metrics.StartTimer()

	products := make([]catalog.Product, len(refs))
	found := make([]bool, len(refs))

	var g errgroup.Group
	g.SetLimit(h.limit)
	for i, ref := range refs {
		g.Go(func() error {
			p, err := h.lookup.Get(ctx, ref.ProductID)
			if err != nil {
				log.Warn("lookup failed, dropping reference",
					zap.String("reference_id", ref.ID),
					zap.String("product_id", ref.ProductID),
					zap.Error(err),
				)
				return nil
			}
			products[i] = p
			found[i] = true
			return nil
		})
	}
	_ = g.Wait()

	at := h.now().UTC()
	out := make([]Hydrated, 0, len(refs))
	for i, ref := range refs {
		if !found[i] {
			continue
		}
		out = append(out, Hydrated{Record: ref, Product: products[i], HydratedAt: at})
	}

	h.metrics.Counter(metrics.Hydrations).Inc()
	h.metrics.Counter(metrics.HydrationDropped).Add(uint64(len(refs) - len(out)))
	h.metrics.Observe(metrics.HydrationDuration, timer)

	return out
}
