package httppresentation

import (
	"net/http"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cartcount"
	domainAuth "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	domainCart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"

	"github.com/shopspring/decimal"
)

type signalsResponse struct {
	Guest   uint64    `json:"guest"`
	Auth    uint64    `json:"auth"`
	Touched time.Time `json:"touched"`
}

type cartCountResponse struct {
	Count         int             `json:"count"`
	Authenticated bool            `json:"authenticated"`
	Signals       signalsResponse `json:"signals"`
}

func toCountResponse(res cartcount.Result) cartCountResponse {
	return cartCountResponse{
		Count:         res.Count,
		Authenticated: res.Authenticated,
		Signals: signalsResponse{
			Guest:   res.Signals.Guest,
			Auth:    res.Signals.Auth,
			Touched: res.Signals.Touched,
		},
	}
}

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type cartResponse struct {
	Authenticated bool               `json:"authenticated"`
	Items         []cartItemResponse `json:"items"`
	Count         int                `json:"count"`
	Subtotal      string             `json:"subtotal"`
}

func toCartResponse(authenticated bool, items []domainCart.Item) cartResponse {
	out := cartResponse{
		Authenticated: authenticated,
		Items:         make([]cartItemResponse, 0, len(items)),
		Count:         domainCart.Count(items),
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
		out.Items = append(out.Items, cartItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price.StringFixed(2),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	out.Subtotal = subtotal.StringFixed(2)
	return out
}

func (h *Handler) handleCartCount(w http.ResponseWriter, r *http.Request) {
	id := domainAuth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, toCountResponse(h.svc.CartCount.Count(r.Context(), id)))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := domainAuth.FromContext(r.Context())
	if id.Authenticated {
		c, err := h.svc.Carts.Cart(r.Context(), id.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCartResponse(true, c.Items))
		return
	}
	items, err := h.svc.Carts.GuestItems(r.Context(), id.GuestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(false, items))
}

type addItemRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	item := domainCart.Item{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  req.Quantity,
	}
	h.writeCartResult(w, r, http.StatusCreated,
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			c, err := h.svc.Carts.AddItem(r.Context(), id.UserID, item)
			return itemsOf(c), err
		},
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			return h.svc.Carts.AddGuestItem(r.Context(), id.GuestID, item)
		},
	)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	productID := r.PathValue("productID")
	h.writeCartResult(w, r, http.StatusOK,
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			c, err := h.svc.Carts.SetQuantity(r.Context(), id.UserID, productID, req.Quantity)
			return itemsOf(c), err
		},
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			return h.svc.Carts.SetGuestQuantity(r.Context(), id.GuestID, productID, req.Quantity)
		},
	)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")
	h.writeCartResult(w, r, http.StatusOK,
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			c, err := h.svc.Carts.RemoveItem(r.Context(), id.UserID, productID)
			return itemsOf(c), err
		},
		func(id domainAuth.Identity) ([]domainCart.Item, error) {
			return h.svc.Carts.RemoveGuestItem(r.Context(), id.GuestID, productID)
		},
	)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	id := domainAuth.FromContext(r.Context())
	var err error
	if id.Authenticated {
		err = h.svc.Carts.ClearCart(r.Context(), id.UserID)
	} else {
		err = h.svc.Carts.ClearGuestCart(r.Context(), id.GuestID)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Carts.MergeGuestIntoUser(r.Context(), id.GuestID, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger(r.Context()).Info("guest_cart_merged", observability.F("count", c.Count()))
	writeJSON(w, http.StatusOK, toCartResponse(true, c.Items))
}

// writeCartResult routes a mutation to the cart that matches the caller's mode.
func (h *Handler) writeCartResult(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	user func(domainAuth.Identity) ([]domainCart.Item, error),
	guest func(domainAuth.Identity) ([]domainCart.Item, error),
) {
	id := domainAuth.FromContext(r.Context())
	mutate := guest
	if id.Authenticated {
		mutate = user
	}
	items, err := mutate(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, toCartResponse(id.Authenticated, items))
}

func itemsOf(c *domainCart.Cart) []domainCart.Item {
	if c == nil {
		return nil
	}
	return c.Items
}
