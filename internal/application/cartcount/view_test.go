package cartcount

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewFixture struct {
	carts   *memory.ServerCartRepository
	guests  *memory.GuestCartStore
	signals *cartsignal.Registry
	view    *View
}

func newViewFixture() viewFixture {
	f := viewFixture{
		carts:   memory.NewServerCartRepository(),
		guests:  memory.NewGuestCartStore(),
		signals: cartsignal.NewRegistry(),
	}
	f.view = NewView(NewReconciler(f.carts, f.guests, f.signals, nil))
	return f
}

func TestViewMemoisesUntilSignalMoves(t *testing.T) {
	ctx := context.Background()
	f := newViewFixture()
	id := auth.Identity{GuestID: "g1"}

	require.NoError(t, f.guests.Put(ctx, "g1", []cart.Item{{ProductID: "a", Quantity: 1}}))
	assert.Equal(t, 1, f.view.Count(ctx, id).Count)
	assert.Equal(t, 1, f.view.Count(ctx, id).Count)
	assert.Equal(t, 1, f.view.Evaluations())

	// a write without a bump stays invisible
	require.NoError(t, f.guests.Put(ctx, "g1", []cart.Item{{ProductID: "a", Quantity: 4}}))
	assert.Equal(t, 1, f.view.Count(ctx, id).Count)

	f.signals.For(cartsignal.GuestKey("g1")).BumpGuest()
	assert.Equal(t, 4, f.view.Count(ctx, id).Count)
	assert.Equal(t, 2, f.view.Evaluations())
}

func TestViewTouchAloneInvalidates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	signals := cartsignal.NewRegistry(cartsignal.WithClock(func() time.Time { return now }))
	guests := memory.NewGuestCartStore()
	view := NewView(NewReconciler(memory.NewServerCartRepository(), guests, signals, nil))
	id := auth.Identity{GuestID: "g1"}
	store := signals.For(cartsignal.GuestKey("g1"))

	assert.Equal(t, 0, view.Count(ctx, id).Count)
	require.NoError(t, guests.Put(ctx, "g1", []cart.Item{{ProductID: "a", Quantity: 2}}))
	assert.Equal(t, 0, view.Count(ctx, id).Count)

	now = now.Add(time.Second)
	store.Touch()
	assert.Equal(t, 2, view.Count(ctx, id).Count)
	assert.Equal(t, uint64(0), store.Guest())
}

func TestViewSwitchesSourceOnLogin(t *testing.T) {
	ctx := context.Background()
	f := newViewFixture()

	require.NoError(t, f.guests.Put(ctx, "g1", []cart.Item{{ProductID: "a", Quantity: 3}}))
	c := cart.New("u1")
	require.NoError(t, c.Add(cart.Item{ProductID: "b", Quantity: 8}))
	require.NoError(t, f.carts.Save(ctx, c))

	assert.Equal(t, 3, f.view.Count(ctx, auth.Identity{GuestID: "g1"}).Count)
	assert.Equal(t, 8, f.view.Count(ctx, auth.Identity{GuestID: "g1", UserID: "u1", Authenticated: true}).Count)
	assert.Equal(t, 3, f.view.Count(ctx, auth.Identity{GuestID: "g1"}).Count)
}

func TestViewAuthBumpInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newViewFixture()
	id := auth.Identity{GuestID: "g1", UserID: "u1", Authenticated: true}

	assert.Equal(t, 0, f.view.Count(ctx, id).Count)

	c := cart.New("u1")
	require.NoError(t, c.Add(cart.Item{ProductID: "b", Quantity: 2}))
	require.NoError(t, f.carts.Save(ctx, c))
	assert.Equal(t, 0, f.view.Count(ctx, id).Count)

	f.signals.For(cartsignal.UserKey("u1")).BumpAuth()
	assert.Equal(t, 2, f.view.Count(ctx, id).Count)

	f.view.Forget("g1")
	assert.Equal(t, 2, f.view.Count(ctx, id).Count)
	assert.Equal(t, 3, f.view.Evaluations())
}

func TestViewEvictsLeastRecentSession(t *testing.T) {
	ctx := context.Background()
	f := newViewFixture()
	view := NewView(NewReconciler(f.carts, f.guests, f.signals, nil), WithViewSize(2))

	for i := 0; i < 1000; i++ {
		view.Count(ctx, auth.Identity{GuestID: fmt.Sprintf("g%d", i)})
	}
	assert.Equal(t, 2, view.Len())

	// g999 is still cached, g0 was evicted and evaluates again
	view.Count(ctx, auth.Identity{GuestID: "g999"})
	assert.Equal(t, 1000, view.Evaluations())
	view.Count(ctx, auth.Identity{GuestID: "g0"})
	assert.Equal(t, 1001, view.Evaluations())
}
