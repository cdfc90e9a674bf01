package cartcount

import (
	"context"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"
)

const workerService = "cart-count-worker"

// Worker re-evaluates the count of every cart that changes and records its size.
type Worker struct {
	subscriber domoutbox.Subscriber
	rec        *Reconciler

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	sizes        observability.Histogram // cart_count_items{source}
}

func NewWorker(subscriber domoutbox.Subscriber, rec *Reconciler, tel observability.Observability) *Worker {
	tel = observability.Or(tel)
	return &Worker{
		subscriber:   subscriber,
		rec:          rec,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		sizes:        tel.Metrics().Histogram(observability.MCartCountItems),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.rec == nil {
		return
	}
	w.subscriber.Subscribe(cart.ChangedEvent{}.EventName(),
		domoutbox.Typed(w.handleCartChanged, w.ignore))
}

const useCaseCartChanged = "cart_count.worker.cart_changed"

func (w *Worker) ignore(context.Context, domoutbox.Event) error {
	w.count(useCaseCartChanged, "ignored")
	return nil
}

func (w *Worker) handleCartChanged(ctx context.Context, evt cart.ChangedEvent) error {
	const useCase = useCaseCartChanged
	ctx = logctx.WithEvent(ctx, w.log, map[string]string{
		"use_case": useCase,
		"event":    evt.EventName(),
		"source":   string(evt.Source),
	})
	start := time.Now()

	id := auth.Identity{GuestID: evt.OwnerID}
	if evt.Source == cart.SourceAuth {
		id = auth.Identity{UserID: evt.OwnerID, Authenticated: true}
	}
	res, _ := w.rec.Execute(ctx, id)

	lat := time.Since(start).Seconds()
	w.count(useCase, "success")
	w.durHistogram.Observe(lat, observability.L("use_case", useCase))
	w.sizes.Observe(float64(res.Count), observability.L("source", string(evt.Source)))

	logctx.FromOr(ctx, w.log).Info("cart_count_refreshed",
		observability.F("owner_id", evt.OwnerID),
		observability.F("version", strconv.FormatUint(evt.Version, 10)),
		observability.F("count", res.Count),
		observability.F("latency_seconds", lat),
	)
	return nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
