package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	appCart "github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cartcount"
	appOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/application/order"
	domainAuth "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	domainCart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	domainOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/logctx"

	"github.com/gorilla/websocket"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

// Services are the application entry points the handler routes to.
type Services struct {
	Carts      *appCart.Service
	CartCount  *cartcount.View
	Signals    *cartsignal.Registry
	Orders     *appOrder.Service
	PlaceOrder *appOrder.PlaceOrderUseCase
	Auth       domainAuth.Authenticator
	// Admins may update the status of any order.
	Admins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Handler struct {
	svc    Services
	admins map[string]struct{}

	log      observability.Logger
	tel      observability.Observability
	upgrader websocket.Upgrader
}

func NewHandler(svc Services, tel observability.Observability) *Handler {
	tel = observability.Or(tel)
	admins := make(map[string]struct{}, len(svc.Admins))
	for _, a := range svc.Admins {
		admins[a] = struct{}{}
	}
	return &Handler{
		svc:    svc,
		admins: admins,
		log:    tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:    tel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger, HTTP metrics) → Access log → Identity → Handler
	h.muxHandle(mux, http.MethodGet, "/cart/count", h.handleCartCount)
	h.muxHandle(mux, http.MethodGet, "/cart/count/stream", h.handleCartCountStream)
	h.muxHandle(mux, http.MethodGet, "/cart", h.handleGetCart)
	h.muxHandle(mux, http.MethodPost, "/cart/items", h.handleAddItem)
	h.muxHandle(mux, http.MethodPut, "/cart/items/{productID}", h.handleSetQuantity)
	h.muxHandle(mux, http.MethodDelete, "/cart/items/{productID}", h.handleRemoveItem)
	h.muxHandle(mux, http.MethodDelete, "/cart", h.handleClearCart)
	h.muxHandle(mux, http.MethodPost, "/cart/merge", h.handleMergeCart)

	h.muxHandle(mux, http.MethodGet, "/orders", h.handleListOrders)
	h.muxHandle(mux, http.MethodPost, "/orders", h.handlePlaceOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/{orderID}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/{orderID}/invoice", h.handleInvoice)
	h.muxHandle(mux, http.MethodPost, "/orders/{orderID}/status", h.handleUpdateStatus)

	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	if h.svc.Metrics != nil {
		mux.Handle("GET /metrics", h.svc.Metrics)
	}
	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			h.tel,
		)(
			h.withAccessLog(
				h.withIdentity(handler),
			),
		),
	)
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		// stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), method+" "+route)))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requireUser returns the authenticated identity or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (domainAuth.Identity, bool) {
	id := domainAuth.FromContext(r.Context())
	if !id.Authenticated || id.UserID == "" {
		writeDomainError(w, domainAuth.ErrUnauthenticated)
		return id, false
	}
	return id, true
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainAuth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainCart.ErrItemNotInCart):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errBadRequest),
		errors.Is(err, domainCart.ErrProductRequired),
		errors.Is(err, domainCart.ErrInvalidQuantity),
		errors.Is(err, domainCart.ErrInvalidPrice),
		errors.Is(err, domainCart.ErrOwnerRequired),
		errors.Is(err, domainOrder.ErrEmptyCart),
		errors.Is(err, domainOrder.ErrUserRequired),
		errors.Is(err, domainOrder.ErrInvalidPaymentMethod),
		errors.Is(err, domainOrder.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, domainOrder.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

func (h *Handler) logger(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, h.log)
}
