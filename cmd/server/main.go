package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-core/internal/address"
	"bookstore-core/internal/cart"
	"bookstore-core/internal/catalog"
	"bookstore-core/internal/checkout"
	"bookstore-core/internal/config"
	"bookstore-core/internal/db"
	"bookstore-core/internal/httpapi"
	"bookstore-core/internal/hydrate"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/notify"
	"bookstore-core/internal/order"
	"bookstore-core/internal/payment"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

type app struct {
	router   http.Handler
	limiter  *httpapi.RateLimiter
	cart     *cart.Service
	checkout *checkout.Orchestrator
	amqp     *notify.AMQPSink
}

func newApp(cfg *config.Config, database *sql.DB) *app {
	reg := metrics.NewRegistry()
	books := catalog.NewRepository(database)

	cartSvc := cart.NewService(
		reference.NewCartStore(reference.NewRepository(database, reference.TableCart)),
		reference.NewWishlistStore(reference.NewRepository(database, reference.TableWishlist)),
		hydrate.NewHydrator(books,
			hydrate.WithConcurrency(cfg.HydrationConcurrency),
			hydrate.WithMetrics(reg),
		),
	)

	a := &app{limiter: httpapi.NewRateLimiter(), cart: cartSvc}

	// ✅ Notifications always reach the log; AMQP is optional
	sinks := notify.FanOut{notify.LogSink{}}
	if cfg.AMQPURL != "" {
		sink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.L().Warn("amqp unavailable, notifications are log only", zap.Error(err))
		} else {
			a.amqp = sink
			sinks = append(sinks, sink)
		}
	}

	addresses := address.NewService(address.NewRepository(database))
	orders := order.NewRepository(database)

	a.checkout = checkout.New(checkout.Deps{
		Cart:      cartSvc,
		Orders:    orders,
		Inventory: books,
		Sink:      sinks,
		Addresses: addresses,
		Payments:  payment.NewSimulator(cfg.PaymentDelay),
		Metrics:   reg,
	}, checkout.Config{
		Fees: order.Fees{
			PlatformFee:           cfg.PlatformFee,
			ShippingFee:           cfg.ShippingFee,
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			TaxPercent:            cfg.TaxPercent,
		},
		LowStockThreshold: cfg.LowStockThreshold,
		DeliveryDays:      cfg.DeliveryDays,
		Retries:           cfg.SideEffectRetries,
	})

	a.router = httpapi.NewRouter(httpapi.Deps{
		Resolver:  session.NewJWTResolver(cfg.JWTSecret),
		Cart:      cartSvc,
		Checkout:  a.checkout,
		Orders:    order.NewService(orders, order.NewLifecycle(orders)),
		Addresses: addresses,
		Metrics:   reg,
		Limiter:   a.limiter,
	})

	return a
}

// close waits for in-flight checkout side effects before releasing resources.
func (a *app) close() {
	a.checkout.Wait()
	a.cart.Close()
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			logger.L().Warn("amqp close", zap.Error(err))
		}
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info("database connection established")

	a := newApp(cfg, database)
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go a.limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 server running", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
