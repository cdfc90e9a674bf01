package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	cartService     = "cart-service"
	spanPrefix      = "UC."
	publishPeer     = "outbox"
	publishEndpoint = "cart.changed"
	publishTimeout  = 300 * time.Millisecond
)

// Service is the only writer of guest and authenticated carts. Every successful write bumps
// the owner's signal in the same call and then announces the change on the outbox.
type Service struct {
	carts     domain.ServerCartRepository
	guests    domain.GuestCartStore
	signals   *cartsignal.Registry
	publisher domoutbox.Publisher

	locks ownerLocks

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	bumpCounter  observability.Counter   // cart_signal_bumps_total{source}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewService(
	carts domain.ServerCartRepository,
	guests domain.GuestCartStore,
	signals *cartsignal.Registry,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return &Service{
		carts:        carts,
		guests:       guests,
		signals:      signals,
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", cartService)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		bumpCounter:  m.Counter(observability.MCartSignalBumps),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// GuestItems returns the guest cart snapshot.
func (s *Service) GuestItems(ctx context.Context, guestID string) ([]domain.Item, error) {
	items, err := s.guests.Items(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("cart: guest items: %w", err)
	}
	return items, nil
}

func (s *Service) AddGuestItem(ctx context.Context, guestID string, item domain.Item) ([]domain.Item, error) {
	return s.mutateGuest(ctx, "cart.guest.add", guestID, func(items []domain.Item) ([]domain.Item, error) {
		return domain.AddItem(items, item)
	})
}

func (s *Service) SetGuestQuantity(ctx context.Context, guestID, productID string, quantity int) ([]domain.Item, error) {
	return s.mutateGuest(ctx, "cart.guest.set_quantity", guestID, func(items []domain.Item) ([]domain.Item, error) {
		return domain.SetQuantity(items, productID, quantity)
	})
}

func (s *Service) RemoveGuestItem(ctx context.Context, guestID, productID string) ([]domain.Item, error) {
	return s.mutateGuest(ctx, "cart.guest.remove", guestID, func(items []domain.Item) ([]domain.Item, error) {
		return domain.RemoveItem(items, productID), nil
	})
}

func (s *Service) ClearGuestCart(ctx context.Context, guestID string) error {
	_, err := s.mutateGuest(ctx, "cart.guest.clear", guestID, func([]domain.Item) ([]domain.Item, error) {
		return []domain.Item{}, nil
	})
	return err
}

// Cart returns the user's cart, or an empty one when none is stored yet.
func (s *Service) Cart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrOwnerRequired
	}
	c, err := s.carts.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: get: %w", err)
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.Item) (*domain.Cart, error) {
	return s.mutateUser(ctx, "cart.add", userID, func(c *domain.Cart) error { return c.Add(item) })
}

func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	return s.mutateUser(ctx, "cart.set_quantity", userID, func(c *domain.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	return s.mutateUser(ctx, "cart.remove", userID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	_, err := s.mutateUser(ctx, "cart.clear", userID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// MergeGuestIntoUser moves a guest cart into the user's cart after login. Both signals
// move: the guest cart is now empty and the user cart has grown.
//
// The guest items are taken out first, so a failed call never leaves them in both carts
// and a retry cannot add them twice. If the user cart cannot be saved they are put back.
func (s *Service) MergeGuestIntoUser(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrOwnerRequired
	}
	guestItems, err := s.GuestItems(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if len(guestItems) == 0 {
		return s.Cart(ctx, userID)
	}

	var taken []domain.Item
	if _, err := s.mutateGuest(ctx, "cart.merge.take_guest", guestID, func(items []domain.Item) ([]domain.Item, error) {
		taken = items
		return []domain.Item{}, nil
	}); err != nil {
		return nil, err
	}

	merged, err := s.mutateUser(ctx, "cart.merge", userID, func(c *domain.Cart) error {
		for _, it := range taken {
			if it.Units() == 0 {
				continue
			}
			if err := c.Add(it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if rerr := s.restoreGuest(ctx, guestID, taken); rerr != nil {
			logctx.FromOr(ctx, s.log).Error("cart_merge_restore_failed",
				observability.F("guest_id", guestID),
				observability.F("items", len(taken)),
				observability.F("error", rerr.Error()),
			)
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return merged, nil
}

// restoreGuest adds items back on top of whatever the guest cart holds now.
func (s *Service) restoreGuest(ctx context.Context, guestID string, items []domain.Item) error {
	_, err := s.mutateGuest(ctx, "cart.merge.restore_guest", guestID, func(current []domain.Item) ([]domain.Item, error) {
		next := current
		for _, it := range items {
			var err error
			if next, err = domain.AddItem(next, it); err != nil {
				return nil, err
			}
		}
		return next, nil
	})
	return err
}

func (s *Service) mutateGuest(
	ctx context.Context,
	useCase, guestID string,
	fn func([]domain.Item) ([]domain.Item, error),
) (out []domain.Item, err error) {
	if guestID == "" {
		return nil, domain.ErrOwnerRequired
	}
	owner := cartsignal.GuestKey(guestID)
	err = s.run(ctx, useCase, domain.SourceGuest, func(ctx context.Context) (string, error) {
		unlock := s.lock(owner)
		defer unlock()

		items, err := s.guests.Items(ctx, guestID)
		if err != nil {
			return "GUEST_CART_READ_FAILED", fmt.Errorf("cart: read guest cart: %w", err)
		}
		next, err := fn(items)
		if err != nil {
			return "VALIDATION_FAILED", err
		}
		write := func() error { return s.guests.Put(ctx, guestID, next) }
		if len(next) == 0 {
			write = func() error { return s.guests.Delete(ctx, guestID) }
		}
		if err := write(); err != nil {
			return "GUEST_CART_WRITE_FAILED", fmt.Errorf("cart: write guest cart: %w", err)
		}

		version := s.signals.BumpGuest(owner)
		s.bumpCounter.Add(1, observability.L("source", string(domain.SourceGuest)))
		s.publish(ctx, domain.NewChangedEvent(guestID, domain.SourceGuest, version))

		out = next
		return "OK", nil
	})
	return out, err
}

func (s *Service) mutateUser(
	ctx context.Context,
	useCase, userID string,
	fn func(*domain.Cart) error,
) (out *domain.Cart, err error) {
	if userID == "" {
		return nil, domain.ErrOwnerRequired
	}
	owner := cartsignal.UserKey(userID)
	err = s.run(ctx, useCase, domain.SourceAuth, func(ctx context.Context) (string, error) {
		unlock := s.lock(owner)
		defer unlock()

		c, err := s.Cart(ctx, userID)
		if err != nil {
			return "CART_READ_FAILED", err
		}
		if err := fn(c); err != nil {
			return "VALIDATION_FAILED", err
		}
		if err := s.carts.Save(ctx, c); err != nil {
			return "CART_WRITE_FAILED", fmt.Errorf("cart: save: %w", err)
		}

		version := s.signals.BumpAuth(owner)
		s.bumpCounter.Add(1, observability.L("source", string(domain.SourceAuth)))
		s.publish(ctx, domain.NewChangedEvent(userID, domain.SourceAuth, version))

		out = c
		return "OK", nil
	})
	return out, err
}

// run wraps fn in the span, RED metrics and use_case_done log shared by every mutation.
func (s *Service) run(ctx context.Context, useCase string, source domain.Source, fn func(context.Context) (string, error)) (err error) {
	ctx, logger := logctx.Enrich(ctx, s.log,
		observability.F("use_case", useCase),
		observability.F("source", string(source)),
	)
	ctx, span := s.tracer.Start(ctx, spanPrefix+useCase,
		attribute.String("use_case", useCase),
		attribute.String("cart.source", string(source)),
	)
	start := time.Now()

	statusText, err := fn(ctx)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, statusText)
	} else {
		span.SetStatus(codes.Ok, statusText)
	}
	span.End()

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
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Info("use_case_done", fields...)
	return err
}

// publish is best effort: the write and the bump have already happened, so a lost event
// only delays the background recount.
func (s *Service) publish(ctx context.Context, evt domain.ChangedEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	if err := s.publisher.Publish(pubCtx, evt); err != nil {
		outcome = "error"
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", evt.EventName()),
			observability.F("error", err.Error()),
		)
	}
	s.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
	)
}

func (s *Service) lock(owner string) func() { return s.locks.lock(owner) }

// ownerLocks serialises writes per owner. An entry lives only while some call holds or
// waits for it.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*ownerLock
}

type ownerLock struct {
	sync.Mutex
	refs int
}

func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*ownerLock)
	}
	e, ok := l.m[owner]
	if !ok {
		e = &ownerLock{}
		l.m[owner] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, owner)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
