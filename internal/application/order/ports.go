package order

import (
	"context"

	domcart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
)

type IDGenerator interface {
	NewID() string
}

// CartPort is the slice of the cart service checkout needs. ClearCart must go through the
// cart service so the auth signal moves with the write.
type CartPort interface {
	Cart(ctx context.Context, userID string) (*domcart.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}
