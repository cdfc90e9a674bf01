package cartcount

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	cartCountService = "cart-count"
	useCaseCartCount = "cart.count"
	spanPrefix       = "UC."
)

// Input is everything one evaluation depends on.
type Input struct {
	Authenticated bool
	// ServerCart is nil while the authenticated cart is absent or still loading.
	ServerCart *cart.Cart
	GuestItems []cart.Item
	Signals    cartsignal.Snapshot
}

// Reconcile picks the cart matching the authentication mode and sums its quantities.
// Signals do not change the result; they only decide when callers re-run it.
func Reconcile(in Input) int {
	if in.Authenticated {
		return in.ServerCart.Count()
	}
	return cart.Count(in.GuestItems)
}

type Result struct {
	Count         int
	Authenticated bool
	Signals       cartsignal.Snapshot
}

// Reconciler gathers Input from the cart collaborators and reconciles it. It never returns
// an error: unreadable sources count as empty.
type Reconciler struct {
	carts   cart.ServerCartRepository
	guests  cart.GuestCartStore
	signals *cartsignal.Registry

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

var _ application.UseCase[auth.Identity, Result] = (*Reconciler)(nil)

func NewReconciler(
	carts cart.ServerCartRepository,
	guests cart.GuestCartStore,
	signals *cartsignal.Registry,
	tel observability.Observability,
) *Reconciler {
	tel = observability.Or(tel)
	return &Reconciler{
		carts:        carts,
		guests:       guests,
		signals:      signals,
		log:          tel.Logger().With(observability.F("service", cartCountService)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute evaluates the count for id.
func (r *Reconciler) Execute(ctx context.Context, id auth.Identity) (Result, error) {
	ctx, span := r.tracer.Start(ctx, spanPrefix+"CartCount",
		attribute.String("use_case", useCaseCartCount),
		attribute.Bool("cart.authenticated", id.Authenticated),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	ctx, logger := logctx.Enrich(ctx, r.log, observability.F("use_case", useCaseCartCount))

	in := r.gather(ctx, logger, id, &outcome, &statusText)
	res := Result{Count: Reconcile(in), Authenticated: in.Authenticated, Signals: in.Signals}

	lat := time.Since(start).Seconds()
	span.SetAttributes(attribute.Int("cart.count", res.Count))
	span.SetStatus(codes.Ok, statusText)
	span.End()
	r.reqCounter.Add(1,
		observability.L("use_case", useCaseCartCount),
		observability.L("outcome", outcome),
	)
	r.durHistogram.Observe(lat, observability.L("use_case", useCaseCartCount))
	logger.Debug("use_case_done",
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", lat),
		observability.F("authenticated", res.Authenticated),
		observability.F("count", res.Count),
		observability.F("guest_signal", res.Signals.Guest),
		observability.F("auth_signal", res.Signals.Auth),
	)
	return res, nil
}

// Count is Execute without the metadata.
func (r *Reconciler) Count(ctx context.Context, id auth.Identity) int {
	res, _ := r.Execute(ctx, id)
	return res.Count
}

// Signals returns the snapshot an evaluation for id would observe right now.
func (r *Reconciler) Signals(id auth.Identity) cartsignal.Snapshot {
	userID := ""
	if id.Authenticated {
		userID = id.UserID
	}
	return r.signals.Combined(id.GuestID, userID)
}

// gather reads the signals before the cart data. A write that lands in between bumps a
// signal past the one recorded here, so a memoised result is never keyed newer than its data.
func (r *Reconciler) gather(ctx context.Context, logger observability.Logger, id auth.Identity, outcome, statusText *string) Input {
	in := Input{
		Authenticated: id.Authenticated,
		Signals:       r.Signals(id),
	}

	if id.Authenticated {
		c, err := r.carts.Get(ctx, id.UserID)
		switch {
		case err == nil:
			in.ServerCart = c
		case errors.Is(err, cart.ErrNotFound):
		default:
			*outcome, *statusText = "degraded", "SERVER_CART_UNAVAILABLE"
			logger.Warn("server_cart_read_failed", observability.F("error", err))
		}
		return in
	}

	// re-read on every evaluation; guest storage has no change notification of its own
	items, err := r.guests.Items(ctx, id.GuestID)
	if err != nil {
		*outcome, *statusText = "degraded", "GUEST_CART_UNAVAILABLE"
		logger.Warn("guest_cart_read_failed", observability.F("error", err))
		return in
	}
	in.GuestItems = items
	return in
}
