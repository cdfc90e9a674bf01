package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
)

// GuestCartStore persists guest carts as JSON item lists.
type GuestCartStore struct {
	db *sql.DB
}

func NewGuestCartStore(db *sql.DB) *GuestCartStore {
	return &GuestCartStore{db: db}
}

func (s *GuestCartStore) Items(ctx context.Context, guestID string) ([]domain.Item, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT items FROM guest_carts WHERE guest_id = ?", guestID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("guest cart store: select: %w", err)
	}
	return decodeItems(raw)
}

func (s *GuestCartStore) Put(ctx context.Context, guestID string, items []domain.Item) error {
	if guestID == "" {
		return domain.ErrOwnerRequired
	}
	raw, err := encodeItems(items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guest_carts (guest_id, items, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(guest_id) DO UPDATE SET items=excluded.items, updated_at=excluded.updated_at`,
		guestID, raw, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("guest cart store: upsert: %w", err)
	}
	return nil
}

func (s *GuestCartStore) Delete(ctx context.Context, guestID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM guest_carts WHERE guest_id = ?", guestID); err != nil {
		return fmt.Errorf("guest cart store: delete: %w", err)
	}
	return nil
}

// ServerCartRepository persists authenticated users' carts.
type ServerCartRepository struct {
	db *sql.DB
}

func NewServerCartRepository(db *sql.DB) *ServerCartRepository {
	return &ServerCartRepository{db: db}
}

func (r *ServerCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	var (
		raw       string
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT items, updated_at FROM server_carts WHERE user_id = ?", userID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("server cart repository: select: %w", err)
	}
	items, err := decodeItems(raw)
	if err != nil {
		return nil, err
	}
	return &domain.Cart{UserID: userID, Items: items, UpdatedAt: time.Unix(0, updatedAt).UTC()}, nil
}

func (r *ServerCartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.UserID == "" {
		return domain.ErrOwnerRequired
	}
	raw, err := encodeItems(c.Items)
	if err != nil {
		return err
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO server_carts (user_id, items, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET items=excluded.items, updated_at=excluded.updated_at`,
		c.UserID, raw, updatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("server cart repository: upsert: %w", err)
	}
	return nil
}

func encodeItems(items []domain.Item) (string, error) {
	if items == nil {
		items = []domain.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("cart: marshal items: %w", err)
	}
	return string(raw), nil
}

func decodeItems(raw string) ([]domain.Item, error) {
	items := []domain.Item{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("cart: unmarshal items: %w", err)
	}
	return items, nil
}
