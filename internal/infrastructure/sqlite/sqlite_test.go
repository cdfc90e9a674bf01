package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGuestCartStore(t *testing.T) {
	ctx := context.Background()
	store := NewGuestCartStore(openTestDB(t))

	items, err := store.Items(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, items)

	want := []domcart.Item{
		{ProductID: "rice", Name: "Basmati Rice", Price: decimal.RequireFromString("120.50"), Quantity: 2},
		{ProductID: "salt", Name: "Salt", Price: decimal.NewFromInt(20)},
	}
	require.NoError(t, store.Put(ctx, "g1", want))
	require.NoError(t, store.Put(ctx, "g1", want[:1]))

	items, err = store.Items(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "rice", items[0].ProductID)
	assert.True(t, want[0].Price.Equal(items[0].Price))
	assert.Equal(t, 2, domcart.Count(items))

	require.NoError(t, store.Delete(ctx, "g1"))
	items, err = store.Items(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, store.Put(ctx, "", want), domcart.ErrOwnerRequired)
}

func TestServerCartRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewServerCartRepository(openTestDB(t))

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, domcart.ErrNotFound)

	c := domcart.New("u1")
	require.NoError(t, c.Add(domcart.Item{ProductID: "dal", Name: "Toor Dal", Price: decimal.NewFromInt(90), Quantity: 3}))
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count())
	assert.WithinDuration(t, c.UpdatedAt, got.UpdatedAt, time.Microsecond)

	got.Clear()
	require.NoError(t, repo.Save(ctx, got))
	got, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func newOrder(t *testing.T, id, userID, key string, created time.Time) *domorder.Order {
	t.Helper()
	o, err := domorder.New(id, userID, key, []domorder.Line{
		{ProductID: "rice", Name: "Basmati Rice", Price: decimal.NewFromInt(120), Quantity: 2},
	}, domorder.Pricing{TaxRate: decimal.RequireFromString("0.05"), DeliveryFee: decimal.NewFromInt(40)},
		domorder.PaymentCOD, domorder.Address{Name: "Asha", City: "Pune", Pincode: "411001"})
	require.NoError(t, err)
	o.CreatedAt = created
	o.UpdatedAt = created
	return o
}

func TestOrderRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(openTestDB(t))
	o := newOrder(t, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", "", time.Now().UTC())

	require.NoError(t, repo.Insert(ctx, o))
	assert.ErrorIs(t, repo.Insert(ctx, o), domorder.ErrConflict)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.UserID, got.UserID)
	assert.Equal(t, o.Address, got.Address)
	assert.Equal(t, o.Items[0].ProductID, got.Items[0].ProductID)
	assert.True(t, o.Total.Equal(got.Total))
	assert.Equal(t, domorder.StatusPending, got.Status)

	require.NoError(t, got.TransitionTo(domorder.StatusProcessing))
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusProcessing, again.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domorder.ErrNotFound)

	missing := newOrder(t, "ffffffffffffffffffffffffffffffff", "u1", "", time.Now().UTC())
	assert.ErrorIs(t, repo.Update(ctx, missing), domorder.ErrNotFound)
}

func TestOrderRepositoryIdempotency(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(openTestDB(t))
	now := time.Now().UTC()

	first := newOrder(t, "11111111111111111111111111111111", "u1", "k-1", now)
	require.NoError(t, repo.Insert(ctx, first))

	dup := newOrder(t, "22222222222222222222222222222222", "u1", "k-1", now)
	assert.ErrorIs(t, repo.Insert(ctx, dup), domorder.ErrConflict)

	// the same key under another user is a different order
	other := newOrder(t, "33333333333333333333333333333333", "u2", "k-1", now)
	require.NoError(t, repo.Insert(ctx, other))

	got, err := repo.FindByIdempotency(ctx, "u1", "k-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repo.FindByIdempotency(ctx, "u1", "")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
	_, err = repo.FindByIdempotency(ctx, "u3", "k-1")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestOrderRepositoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(openTestDB(t))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, newOrder(t, "11111111111111111111111111111111", "u1", "", base)))
	require.NoError(t, repo.Insert(ctx, newOrder(t, "22222222222222222222222222222222", "u1", "", base.Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newOrder(t, "33333333333333333333333333333333", "u2", "", base.Add(2*time.Hour))))

	orders, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "22222222222222222222222222222222", orders[0].ID)
	assert.Equal(t, "11111111111111111111111111111111", orders[1].ID)
	assert.True(t, base.Equal(orders[1].CreatedAt))

	none, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
