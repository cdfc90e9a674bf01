package main

import (
	"database/sql"
	"fmt"
	"net/http"

	appCart "github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cartcount"
	appOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/application/order"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/config"
	domainCart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	domainOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
	authinfra "github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/memory"
	obsinfra "github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/sqlite"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-storefront/app/internal/presentation/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const metricsNamespace = "storefront"

// app is the assembled object graph shared by the serve and cart-count commands.
type app struct {
	bus        *outbox.Bus
	worker     *cartcount.Worker
	janitor    *cartcount.Janitor
	reconciler *cartcount.Reconciler
	router     http.Handler
	db         *sql.DB
}

type stores struct {
	carts  domainCart.ServerCartRepository
	guests domainCart.GuestCartStore
	orders domainOrder.Repository
	db     *sql.DB
}

func openStores(cfg config.Config) (stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("storage: %w", err)
		}
		return stores{
			carts:  sqlite.NewServerCartRepository(db),
			guests: sqlite.NewGuestCartStore(db),
			orders: sqlite.NewOrderRepository(db),
			db:     db,
		}, nil
	default:
		return stores{
			carts:  memory.NewServerCartRepository(),
			guests: memory.NewGuestCartStore(),
			orders: memory.NewOrderRepository(),
		}, nil
	}
}

// build wires the service. A nil reg gets a private Prometheus registry.
func build(cfg config.Config, logger observability.Logger, reg *prometheus.Registry) (*app, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	counters, histograms := prometrics.Standard(prometrics.New(metricsNamespace, "", reg))
	tracer := oteltrace.New(metricsNamespace, oteltrace.WithAttributes(
		attribute.String("deployment.environment", cfg.Env),
		attribute.String("storefront.storage", cfg.Storage.Driver),
	))
	tel := obsinfra.New(tracer, logger, obsinfra.Instruments{
		Counters:   counters,
		Histograms: histograms,
	})
	if missing := tel.Missing(observability.Keys()...); len(missing) > 0 {
		logger.Warn("metrics_unregistered", observability.F("keys", missing))
	}

	st, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	signals := cartsignal.NewRegistry()
	bus := outbox.NewBus(logger)

	carts := appCart.NewService(st.carts, st.guests, signals, bus, tel)
	reconciler := cartcount.NewReconciler(st.carts, st.guests, signals, tel)
	view := cartcount.NewView(reconciler, cartcount.WithViewSize(cfg.Cart.ViewSize))
	janitor := cartcount.NewJanitor(signals, view, cfg.Cart.SignalIdle, cfg.Cart.SweepInterval, tel)
	worker := cartcount.NewWorker(bus, reconciler, tel)

	pricing := domainOrder.Pricing{
		TaxRate:               cfg.Pricing.TaxRate,
		DeliveryFee:           cfg.Pricing.DeliveryFee,
		FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
	}
	orders := appOrder.NewService(st.orders, bus, tel)
	placeOrder := appOrder.NewPlaceOrderUseCase(st.orders, carts, id.NewUUIDGenerator(), bus, pricing, tel)

	handler := httppresentation.NewHandler(httppresentation.Services{
		Carts:      carts,
		CartCount:  view,
		Signals:    signals,
		Orders:     orders,
		PlaceOrder: placeOrder,
		Auth:       authinfra.NewTokenAuthenticator(cfg.Auth.Tokens),
		Admins:     cfg.Auth.Admins,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, tel)

	return &app{
		bus:        bus,
		worker:     worker,
		janitor:    janitor,
		reconciler: reconciler,
		router:     handler.Router(),
		db:         st.db,
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
