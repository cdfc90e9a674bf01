package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService      = "order-service"
	useCaseOrderPlace = "order.place"
	spanPrefix        = "UC."
	publishPeer       = "outbox"
	publishTimeout    = 300 * time.Millisecond
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// PlaceOrderUseCase turns the authenticated cart into a pending order.
type PlaceOrderUseCase struct {
	repo        domain.Repository
	carts       CartPort
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	pricing     domain.Pricing

	log    observability.Logger
	tracer observability.Tracer
	// RED metrics
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*PlaceOrderUseCase)(nil)

func NewPlaceOrderUseCase(
	repo domain.Repository,
	carts CartPort,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	pricing domain.Pricing,
	tel observability.Observability,
) *PlaceOrderUseCase {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return &PlaceOrderUseCase{
		repo:         repo,
		carts:        carts,
		idGenerator:  idGen,
		publisher:    publisher,
		pricing:      pricing,
		log:          tel.Logger().With(observability.F("service", orderService)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

type PlaceOrderInput struct {
	UserID           string
	IdempotencyKey   string
	PaymentMethod    domain.PaymentMethod
	PaymentReference string
	Address          domain.Address
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is set when the idempotency key matched an earlier order.
	Replayed bool
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseOrderPlace))

	var orderID string
	var publishErr error

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCaseOrderPlace),
		attribute.String("order.user_id", cmd.UserID),
		attribute.String("order.payment_method", string(cmd.PaymentMethod)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderPlace),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseOrderPlace))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.UserID == "" {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, domain.ErrUserRequired
	}
	if !cmd.PaymentMethod.Valid() {
		outcome, statusText = "error", "PAYMENT_METHOD_INVALID"
		return nil, domain.ErrInvalidPaymentMethod
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	replay := func(existing *domain.Order) *PlaceOrderResult {
		orderID = existing.ID
		statusText = "IDEMPOTENT_REPLAY"
		span.AddEvent("order.idempotent_replay",
			trace.WithAttributes(attribute.String("order.id", orderID)),
		)
		return &PlaceOrderResult{Order: existing, Replayed: true}
	}

	if cmd.IdempotencyKey != "" {
		existing, repoErr := uc.repo.FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			return replay(existing), nil
		case errors.Is(repoErr, domain.ErrNotFound):
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, wrapRepositoryError(repoErr)
		}
	}

	c, cerr := uc.carts.Cart(ctx, cmd.UserID)
	if cerr != nil {
		outcome, statusText = "error", "CART_READ_FAILED"
		return nil, fmt.Errorf("order: read cart: %w", cerr)
	}
	lines := linesFrom(c)
	if len(lines) == 0 {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, domain.ErrEmptyCart
	}

	orderID = uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, cmd.UserID, cmd.IdempotencyKey, lines, uc.pricing, cmd.PaymentMethod, cmd.Address)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	entity.PaymentReference = cmd.PaymentReference

	if err := uc.repo.Insert(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.repo.FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey); lookupErr == nil {
				return replay(existing), nil
			}
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	// the order is stored; a cart that fails to clear is logged rather than failing checkout
	if cerr := uc.carts.ClearCart(ctx, cmd.UserID); cerr != nil {
		statusText = "CART_CLEAR_FAILED"
		logger.Warn("cart_clear_failed",
			observability.F("order_id", orderID),
			observability.F("error", cerr.Error()),
		)
	}

	publishErr = publish(ctx, uc.publisher, domain.NewOrderPlacedEvent(entity), uc.extCounter, uc.extHistogram)
	if publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(
		attribute.String("order.status", string(entity.Status)),
		attribute.String("order.total", entity.Total.StringFixed(2)),
	)
	span.AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", orderID)))

	return &PlaceOrderResult{Order: entity}, nil
}

func linesFrom(c *domcart.Cart) []domain.Line {
	if c == nil {
		return nil
	}
	lines := make([]domain.Line, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Units() == 0 {
			continue
		}
		lines = append(lines, domain.Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Units(),
		})
	}
	return lines
}

// publish sends evt with a short timeout and records it as an external call.
func publish(
	ctx context.Context,
	publisher domoutbox.Publisher,
	evt domoutbox.Event,
	counter observability.Counter,
	histogram observability.Histogram,
) error {
	if publisher == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"
	err := publisher.Publish(pubCtx, evt)
	if err != nil {
		pubOutcome = "error"
	} else if pubCtx.Err() != nil {
		pubOutcome = "canceled"
		err = pubCtx.Err()
	}

	counter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", evt.EventName()),
		observability.L("outcome", pubOutcome),
	)
	histogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", evt.EventName()),
	)
	return err
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
