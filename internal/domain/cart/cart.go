package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrProductRequired = errors.New("cart: product id is required")
	ErrInvalidQuantity = errors.New("cart: quantity must not be negative")
	ErrInvalidPrice    = errors.New("cart: price must not be negative")
	ErrOwnerRequired   = errors.New("cart: owner id is required")
	ErrItemNotInCart   = errors.New("cart: item not in cart")
)

// Item is one product line. A missing quantity decodes to zero and contributes nothing
// to counts.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Units is the item's contribution to a cart count.
func (i Item) Units() int {
	if i.Quantity < 0 {
		return 0
	}
	return i.Quantity
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Units())))
}

func (i Item) Validate() error {
	if i.ProductID == "" {
		return ErrProductRequired
	}
	if i.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if i.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Count sums the quantity of every item.
func Count(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Units()
	}
	return n
}

// Cart is the server-backed cart of an authenticated user.
type Cart struct {
	UserID    string
	Items     []Item
	UpdatedAt time.Time
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, UpdatedAt: time.Now().UTC()}
}

// Count returns the item count of c; a nil cart counts as empty.
func (c *Cart) Count() int {
	if c == nil {
		return 0
	}
	return Count(c.Items)
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *Cart) IsEmpty() bool { return c.Count() == 0 }

// Add merges item into the cart, summing quantities for an existing product.
func (c *Cart) Add(item Item) error {
	items, err := AddItem(c.Items, item)
	if err != nil {
		return err
	}
	c.Items = items
	c.touch()
	return nil
}

// SetQuantity replaces the quantity of productID; zero removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	items, err := SetQuantity(c.Items, productID, quantity)
	if err != nil {
		return err
	}
	c.Items = items
	c.touch()
	return nil
}

func (c *Cart) Remove(productID string) {
	c.Items = RemoveItem(c.Items, productID)
	c.touch()
}

func (c *Cart) Clear() {
	c.Items = nil
	c.touch()
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = CloneItems(c.Items)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// AddItem returns items with item merged in. Guest carts have no aggregate, so the list
// helpers are shared with Cart.
func AddItem(items []Item, item Item) ([]Item, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	out := CloneItems(items)
	for i := range out {
		if out[i].ProductID == item.ProductID {
			out[i].Quantity += item.Quantity
			if item.Name != "" {
				out[i].Name = item.Name
			}
			if !item.Price.IsZero() {
				out[i].Price = item.Price
			}
			return out, nil
		}
	}
	return append(out, item), nil
}

func SetQuantity(items []Item, productID string, quantity int) ([]Item, error) {
	if productID == "" {
		return nil, ErrProductRequired
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return RemoveItem(items, productID), nil
	}
	out := CloneItems(items)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = quantity
			return out, nil
		}
	}
	return nil, ErrItemNotInCart
}

func RemoveItem(items []Item, productID string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	return append([]Item(nil), items...)
}
