package cart

import "context"

// ServerCartRepository stores authenticated users' carts. Get returns ErrNotFound when the
// user has no cart yet.
type ServerCartRepository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}

// GuestCartStore persists guest carts keyed by guest session ID. Items returns an empty
// slice for unknown guests.
type GuestCartStore interface {
	Items(ctx context.Context, guestID string) ([]Item, error)
	Put(ctx context.Context, guestID string, items []Item) error
	Delete(ctx context.Context, guestID string) error
}
