package cartcount

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/obstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWorkerRecountsChangedCarts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	guests := memory.NewGuestCartStore()
	carts := memory.NewServerCartRepository()
	require.NoError(t, guests.Put(ctx, "g1", []cart.Item{{ProductID: "a", Quantity: 3}}))
	c := cart.New("u1")
	require.NoError(t, c.Add(cart.Item{ProductID: "b", Quantity: 7}))
	require.NoError(t, carts.Save(ctx, c))

	tel := obstest.New()
	bus := outbox.NewBus(nil)
	NewWorker(bus, NewReconciler(carts, guests, cartsignal.NewRegistry(), tel), tel).Start()
	bus.Start(ctx)

	require.NoError(t, bus.Publish(ctx, cart.NewChangedEvent("g1", cart.SourceGuest, 1)))
	require.NoError(t, bus.Publish(ctx, cart.NewChangedEvent("u1", cart.SourceAuth, 1)))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	assert.Equal(t, []float64{3}, tel.Observations(observability.MCartCountItems, observability.L("source", "guest")))
	assert.Equal(t, []float64{7}, tel.Observations(observability.MCartCountItems, observability.L("source", "auth")))
	assert.Equal(t, 2.0, tel.Counter(observability.MUsecaseRequests,
		observability.L("use_case", "cart_count.worker.cart_changed"),
		observability.L("outcome", "success"),
	))
}

type otherEvent struct{}

func (otherEvent) EventName() string { return "cart.changed" }

func TestWorkerIgnoresForeignPayloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	tel := obstest.New()
	bus := outbox.NewBus(nil)
	NewWorker(bus, NewReconciler(memory.NewServerCartRepository(), memory.NewGuestCartStore(), cartsignal.NewRegistry(), tel), tel).Start()
	bus.Start(ctx)

	require.NoError(t, bus.Publish(ctx, otherEvent{}))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	assert.Equal(t, 1.0, tel.Counter(observability.MUsecaseRequests,
		observability.L("use_case", "cart_count.worker.cart_changed"),
		observability.L("outcome", "ignored"),
	))
	assert.Empty(t, tel.Observations(observability.MCartCountItems, observability.L("source", "guest")))
}
