package httppresentation

import (
	"fmt"
	"net/http"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
)

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type orderResponse struct {
	ID               string                    `json:"id"`
	ShortID          string                    `json:"short_id"`
	Items            []orderLineResponse       `json:"items"`
	Subtotal         string                    `json:"subtotal"`
	Tax              string                    `json:"tax"`
	DeliveryFee      string                    `json:"delivery_fee"`
	Total            string                    `json:"total"`
	Status           domainOrder.Status        `json:"order_status"`
	PaymentStatus    domainOrder.PaymentStatus `json:"payment_status"`
	PaymentMethod    domainOrder.PaymentMethod `json:"payment_method"`
	PaymentReference string                    `json:"payment_reference,omitempty"`
	Address          domainOrder.Address       `json:"shipping_address"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Items))
	for _, l := range o.Items {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal().StringFixed(2),
		})
	}
	return orderResponse{
		ID:               o.ID,
		ShortID:          domainOrder.ShortID(o.ID),
		Items:            lines,
		Subtotal:         o.Subtotal.StringFixed(2),
		Tax:              o.Tax.StringFixed(2),
		DeliveryFee:      o.DeliveryFee.StringFixed(2),
		Total:            o.Total.StringFixed(2),
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		Address:          o.Address,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

type summaryResponse struct {
	ID          string                `json:"id"`
	ShortID     string                `json:"short_id"`
	CreatedAt   time.Time             `json:"created_at"`
	Status      string                `json:"status"`
	StatusLabel string                `json:"status_label"`
	Total       string                `json:"total"`
	Preview     []invoiceLineResponse `json:"preview"`
	MoreItems   int                   `json:"more_items,omitempty"`
}

type invoiceLineResponse struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type invoiceResponse struct {
	Number             string                `json:"number"`
	OrderID            string                `json:"order_id"`
	IssuedAt           time.Time             `json:"issued_at"`
	Status             string                `json:"status"`
	StatusLabel        string                `json:"status_label"`
	PaymentStatus      string                `json:"payment_status"`
	PaymentStatusLabel string                `json:"payment_status_label"`
	PaymentMethod      string                `json:"payment_method"`
	PaymentMethodLabel string                `json:"payment_method_label"`
	PaymentReference   string                `json:"payment_reference,omitempty"`
	BillTo             domainOrder.Address   `json:"bill_to"`
	Lines              []invoiceLineResponse `json:"lines"`
	Subtotal           string                `json:"subtotal"`
	Tax                string                `json:"tax"`
	DeliveryFee        string                `json:"delivery_fee"`
	FreeDelivery       bool                  `json:"free_delivery"`
	Total              string                `json:"total"`
}

func toInvoiceLines(in []domainOrder.InvoiceLine) []invoiceLineResponse {
	lines := make([]invoiceLineResponse, 0, len(in))
	for _, l := range in {
		lines = append(lines, invoiceLineResponse{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return lines
}

func toInvoiceResponse(inv domainOrder.Invoice) invoiceResponse {
	return invoiceResponse{
		Number:             inv.Number,
		OrderID:            inv.OrderID,
		IssuedAt:           inv.IssuedAt,
		Status:             string(inv.Status),
		StatusLabel:        inv.StatusLabel,
		PaymentStatus:      string(inv.PaymentStatus),
		PaymentStatusLabel: inv.PaymentStatusLabel,
		PaymentMethod:      string(inv.PaymentMethod),
		PaymentMethodLabel: inv.PaymentMethodLabel,
		PaymentReference:   inv.PaymentReference,
		BillTo:             inv.BillTo,
		Lines:              toInvoiceLines(inv.Lines),
		Subtotal:           inv.Subtotal.StringFixed(2),
		Tax:                inv.Tax.StringFixed(2),
		DeliveryFee:        inv.DeliveryFee.StringFixed(2),
		FreeDelivery:       inv.FreeDelivery,
		Total:              inv.Total.StringFixed(2),
	}
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	summaries, err := h.svc.Orders.ListOrders(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryResponse{
			ID:          s.OrderID,
			ShortID:     s.ShortID,
			CreatedAt:   s.CreatedAt,
			Status:      string(s.Status),
			StatusLabel: s.StatusLabel,
			Total:       s.Total.StringFixed(2),
			Preview:     toInvoiceLines(s.Preview),
			MoreItems:   s.MoreItems,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Orders.GetOrder(r.Context(), id.UserID, r.PathValue("orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Orders.Invoice(r.Context(), id.UserID, r.PathValue("orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

type placeOrderRequest struct {
	IdempotencyKey   string                    `json:"idempotency_key"`
	PaymentMethod    domainOrder.PaymentMethod `json:"payment_method"`
	PaymentReference string                    `json:"payment_reference"`
	Address          domainOrder.Address       `json:"shipping_address"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get(headerIdempotencyKey)
	}

	res, err := h.svc.PlaceOrder.Execute(r.Context(), appOrder.PlaceOrderInput{
		UserID:           id.UserID,
		IdempotencyKey:   key,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Address:          req.Address,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderResponse(res.Order))
}

type updateStatusRequest struct {
	Status           domainOrder.Status        `json:"status,omitempty"`
	PaymentStatus    domainOrder.PaymentStatus `json:"payment_status,omitempty"`
	PaymentReference string                    `json:"payment_reference,omitempty"`
}

// handleUpdateStatus lets admins move any order and lets owners cancel their own.
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	orderID := r.PathValue("orderID")

	_, admin := h.admins[id.UserID]
	if !admin {
		if req.Status != domainOrder.StatusCancelled || req.PaymentStatus != "" {
			writeError(w, http.StatusForbidden, fmt.Errorf("order %s: only cancellation is allowed", domainOrder.ShortID(orderID)))
			return
		}
		if _, err := h.svc.Orders.GetOrder(r.Context(), id.UserID, orderID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	var (
		o   *domainOrder.Order
		err error
	)
	switch {
	case req.PaymentStatus == domainOrder.PaymentPaid:
		o, err = h.svc.Orders.MarkPaid(r.Context(), orderID, req.PaymentReference)
	case req.PaymentStatus != "":
		err = fmt.Errorf("%w: payment status %q", errBadRequest, req.PaymentStatus)
	case req.Status != "":
		o, err = h.svc.Orders.UpdateStatus(r.Context(), orderID, req.Status)
	default:
		err = fmt.Errorf("%w: status is required", errBadRequest)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
