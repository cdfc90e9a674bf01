package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
)

// ServerCartRepository keeps authenticated carts in process memory.
type ServerCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewServerCartRepository() *ServerCartRepository {
	return &ServerCartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *ServerCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *ServerCartRepository) Save(ctx context.Context, c *domain.Cart) error {
	_ = ctx
	if c == nil || c.UserID == "" {
		return domain.ErrOwnerRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.UserID] = c.Clone()
	return nil
}

// GuestCartStore keeps guest carts in process memory.
type GuestCartStore struct {
	mu    sync.RWMutex
	carts map[string][]domain.Item
}

func NewGuestCartStore() *GuestCartStore {
	return &GuestCartStore{carts: make(map[string][]domain.Item)}
}

func (s *GuestCartStore) Items(ctx context.Context, guestID string) ([]domain.Item, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := domain.CloneItems(s.carts[guestID])
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (s *GuestCartStore) Put(ctx context.Context, guestID string, items []domain.Item) error {
	_ = ctx
	if guestID == "" {
		return domain.ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[guestID] = domain.CloneItems(items)
	return nil
}

func (s *GuestCartStore) Delete(ctx context.Context, guestID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, guestID)
	return nil
}
