package order

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"
)

const useCaseOrderStatus = "order.update_status"

// Service serves the order history views and moves orders through their lifecycle.
type Service struct {
	repo      domain.Repository
	publisher domoutbox.Publisher

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewService(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return &Service{
		repo:         repo,
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// ListOrders returns the user's order summaries, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Summary, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	out := make([]domain.Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, domain.Summarize(o))
	}
	return out, nil
}

// GetOrder returns the order when userID owns it. Another user's order reads as not found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if orderID == "" {
		return nil, ErrNotFound
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) Invoice(ctx context.Context, userID, orderID string) (domain.Invoice, error) {
	o, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return domain.BuildInvoice(o), nil
}

// UpdateStatus applies a lifecycle transition and announces it.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to domain.Status) (*domain.Order, error) {
	return s.update(ctx, useCaseOrderStatus, orderID, func(o *domain.Order) error {
		return o.TransitionTo(to)
	})
}

// MarkPaid records a confirmed payment against the order.
func (s *Service) MarkPaid(ctx context.Context, orderID, reference string) (*domain.Order, error) {
	return s.update(ctx, "order.mark_paid", orderID, func(o *domain.Order) error {
		return o.MarkPaid(reference)
	})
}

func (s *Service) update(ctx context.Context, useCase, orderID string, fn func(*domain.Order) error) (_ *domain.Order, err error) {
	ctx, logger := logctx.Enrich(ctx, s.log,
		observability.F("use_case", useCase),
		observability.F("order_id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		lat := time.Since(start).Seconds()
		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat, observability.L("use_case", useCase))
		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		return nil, wrapRepositoryError(err)
	}
	from := o.Status
	if err := fn(o); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return nil, fmt.Errorf("order: %s: %w", useCase, err)
	}
	if err := s.repo.Update(ctx, o); err != nil {
		outcome, statusText = "error", "ORDER_UPDATE_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if o.Status != from {
		if perr := publish(ctx, s.publisher, domain.NewOrderStatusChangedEvent(o, from), s.extCounter, s.extHistogram); perr != nil {
			statusText = "EVENT_PUBLISH_FAILED"
			logger.Warn("event_publish_failed",
				observability.F("event", "order.status_changed"),
				observability.F("error", perr.Error()),
			)
		}
	}
	return o, nil
}
