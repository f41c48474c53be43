// Package checkout turns a hydrated cart into a persisted order and then runs
// the order's side effects as independent, retried, best-effort tasks.
package checkout

import (
	"context"
	"sync"
	"time"

	"bookstore-core/internal/address"
	"bookstore-core/internal/catalog"
	"bookstore-core/internal/hydrate"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/notify"
	"bookstore-core/internal/order"
	"bookstore-core/internal/payment"
	"bookstore-core/internal/session"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Cart is the session user's hydrated cart. *cart.Service satisfies it.
type Cart interface {
	Hydrated(ctx context.Context, sess *session.Session) ([]hydrate.Hydrated, error)
	RemoveItems(ctx context.Context, sess *session.Session, ids []string) error
}

// AddressBook resolves a shipping address owned by the session user.
type AddressBook interface {
	Get(ctx context.Context, sess *session.Session, id uuid.UUID) (*address.Address, error)
}

type Config struct {
	Fees              order.Fees
	LowStockThreshold int
	DeliveryDays      int
	// Retries is the number of retries per side-effect task after the first attempt.
	Retries int
}

func DefaultConfig() Config {
	return Config{
		Fees:              order.DefaultFees(),
		LowStockThreshold: 5,
		DeliveryDays:      7,
		Retries:           3,
	}
}

type Orchestrator struct {
	cart      Cart
	orders    order.Store
	inventory catalog.Inventory
	sink      notify.Sink
	addresses AddressBook
	payments  payment.Processor
	metrics   *metrics.Registry
	cfg       Config

	now        func() time.Time
	newID      func() string
	newTracker func() string
	newBackOff func() backoff.BackOff

	wg sync.WaitGroup
}

type Deps struct {
	Cart      Cart
	Orders    order.Store
	Inventory catalog.Inventory
	Sink      notify.Sink
	Addresses AddressBook
	Payments  payment.Processor
	Metrics   *metrics.Registry
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDs(orderID, trackingID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = orderID
		o.newTracker = trackingID
	}
}

// WithBackOff replaces the retry schedule used by side-effect tasks.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.newBackOff = f }
}

func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:       deps.Cart,
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		sink:       deps.Sink,
		addresses:  deps.Addresses,
		payments:   deps.Payments,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
		newTracker: func() string { return "TRK" + ulid.Make().String() },
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Quote prices the session user's current cart.
func (o *Orchestrator) Quote(ctx context.Context, sess *session.Session) (order.Summary, error) {
	items, err := o.hydratedCart(ctx, sess)
	if err != nil {
		return order.Summary{}, err
	}
	return o.cfg.Fees.Summarize(snapshotLines(items), 0), nil
}

// CreateOrder persists an order from the session user's hydrated cart. Payment
// is assumed to have succeeded already. Once the order is stored its side
// effects are started in the background and can no longer fail the call.
func (o *Orchestrator) CreateOrder(
	ctx context.Context,
	sess *session.Session,
	addr address.Address,
	method payment.Method,
	details map[string]string,
) (order.Order, error) {
	items, err := o.hydratedCart(ctx, sess)
	if err != nil {
		return order.Order{}, err
	}
	return o.createOrder(ctx, sess, snapshotLines(items), recordIDs(items), addr, method, details)
}

type PlaceOrderInput struct {
	AddressID      uuid.UUID
	PaymentMethod  payment.Method
	PaymentDetails map[string]string
}

type Receipt struct {
	Order   order.Order    `json:"order"`
	Payment payment.Result `json:"payment"`
}

// PlaceOrder resolves the address, charges the quoted amount and creates the
// order from one cart snapshot.
func (o *Orchestrator) PlaceOrder(ctx context.Context, sess *session.Session, in PlaceOrderInput) (Receipt, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Checkout"),
		zap.String("method", "PlaceOrder"),
	)

	// 1️⃣ Preconditions
	if _, err := session.Require(sess); err != nil {
		return Receipt{}, err
	}
	if in.AddressID == uuid.Nil {
		return Receipt{}, ErrMissingAddress
	}

	items, err := o.hydratedCart(ctx, sess)
	if err != nil {
		return Receipt{}, err
	}

	addr, err := o.addresses.Get(ctx, sess, in.AddressID)
	if err != nil {
		return Receipt{}, err
	}

	// 2️⃣ Charge the snapshot total
	lines := snapshotLines(items)
	summary := o.cfg.Fees.Summarize(lines, 0)

	paid, err := o.payments.Process(ctx, in.PaymentMethod, summary.FinalAmount, in.PaymentDetails)
	if err != nil {
		log.Error("payment failed", zap.Error(err))
		return Receipt{}, err
	}

	details := make(map[string]string, len(in.PaymentDetails)+1)
	for k, v := range in.PaymentDetails {
		details[k] = v
	}
	details["transactionId"] = paid.TransactionID

	// 3️⃣ Persist
	ord, err := o.createOrder(ctx, sess, lines, recordIDs(items), *addr, in.PaymentMethod, details)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{Order: ord, Payment: paid}, nil
}

func (o *Orchestrator) hydratedCart(ctx context.Context, sess *session.Session) ([]hydrate.Hydrated, error) {
	if _, err := session.Require(sess); err != nil {
		return nil, err
	}
	items, err := o.cart.Hydrated(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	return items, nil
}

func (o *Orchestrator) createOrder(
	ctx context.Context,
	sess *session.Session,
	lines []order.LineItem,
	ordered []string,
	addr address.Address,
	method payment.Method,
	details map[string]string,
) (order.Order, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return order.Order{}, err
	}
	if len(lines) == 0 {
		return order.Order{}, ErrEmptyCart
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Checkout"),
		zap.String("method", "CreateOrder"),
		zap.String("user_id", userID),
	)

	summary := o.cfg.Fees.Summarize(lines, 0)

	paymentStatus := order.PaymentStatusPaid
	if method.IsCashOnDelivery() {
		paymentStatus = order.PaymentStatusPending
	}

	now := o.now().UTC()
	ord := order.Order{
		ID:              o.newID(),
		UserID:          userID,
		LineItems:       lines,
		ShippingAddress: addr,
		OrderDate:       now,
		Status:          order.StatusPending,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   method,
		PaymentDetails:  details,
		Pricing:         summary.Pricing,
		StatusHistory: []order.StatusEntry{{
			Status:    order.StatusPending,
			Timestamp: now,
			Note:      order.AutoNote(order.StatusPending),
			UpdatedBy: userID,
		}},
		TrackingID:        o.newTracker(),
		EstimatedDelivery: now.AddDate(0, 0, o.cfg.DeliveryDays),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := o.orders.Create(ctx, ord)
	if err != nil {
		log.Error("failed to persist order", zap.Error(err))
		return order.Order{}, err
	}

	o.metrics.Counter(metrics.OrdersPlaced).Inc()
	log.Info("order placed",
		zap.String("order_id", created.ID),
		zap.Int64("final_amount", created.FinalAmount),
		zap.Int("lines", len(created.LineItems)),
	)

	o.startSideEffects(ctx, sess, created, ordered)
	return created, nil
}

// snapshotLines freezes the hydrated product fields into order line items.
func snapshotLines(items []hydrate.Hydrated) []order.LineItem {
	lines := make([]order.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, order.LineItem{
			ProductID: it.ProductID,
			Title:     it.Product.Title,
			Author:    it.Product.Author,
			Price:     it.Product.Price,
			Image:     it.Product.ImageURL,
			Category:  it.Product.Category,
			Quantity:  it.Quantity,
		})
	}
	return lines
}

// recordIDs lists the cart records an order was built from.
func recordIDs(items []hydrate.Hydrated) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Wait blocks until every started side-effect task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
