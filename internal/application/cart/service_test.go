package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/application/cartcount"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/obstest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) changed() []domain.ChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ChangedEvent
	for _, e := range p.events {
		if ce, ok := e.(domain.ChangedEvent); ok {
			out = append(out, ce)
		}
	}
	return out
}

type fixture struct {
	svc     *Service
	carts   *memory.ServerCartRepository
	guests  *memory.GuestCartStore
	signals *cartsignal.Registry
	pub     *capturePublisher
	tel     *obstest.Recorder
}

func newFixture() fixture {
	f := fixture{
		carts:   memory.NewServerCartRepository(),
		guests:  memory.NewGuestCartStore(),
		signals: cartsignal.NewRegistry(),
		pub:     &capturePublisher{},
		tel:     obstest.New(),
	}
	f.svc = NewService(f.carts, f.guests, f.signals, f.pub, f.tel)
	return f
}

func apple(qty int) domain.Item {
	return domain.Item{ProductID: "apple", Name: "Apple", Price: decimal.NewFromInt(30), Quantity: qty}
}

func TestGuestMutationBumpsGuestSignalOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	items, err := f.svc.AddGuestItem(ctx, "g1", apple(2))
	require.NoError(t, err)
	assert.Equal(t, 2, domain.Count(items))

	snap := f.signals.Peek(cartsignal.GuestKey("g1"))
	assert.Equal(t, uint64(1), snap.Guest)
	assert.Equal(t, uint64(0), snap.Auth)

	events := f.pub.changed()
	require.Len(t, events, 1)
	assert.Equal(t, "g1", events[0].OwnerID)
	assert.Equal(t, domain.SourceGuest, events[0].Source)
	assert.Equal(t, uint64(1), events[0].Version)

	assert.Equal(t, 1.0, f.tel.Counter(observability.MCartSignalBumps, observability.L("source", "guest")))
}

func TestMutationMakesViewFresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	view := cartcount.NewView(cartcount.NewReconciler(f.carts, f.guests, f.signals, nil))
	id := auth.Identity{GuestID: "g1"}

	assert.Equal(t, 0, view.Count(ctx, id).Count)

	_, err := f.svc.AddGuestItem(ctx, "g1", apple(2))
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count(ctx, id).Count)

	_, err = f.svc.SetGuestQuantity(ctx, "g1", "apple", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Count(ctx, id).Count)

	_, err = f.svc.RemoveGuestItem(ctx, "g1", "apple")
	require.NoError(t, err)
	assert.Equal(t, 0, view.Count(ctx, id).Count)
}

func TestFailedMutationDoesNotBump(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.AddGuestItem(ctx, "g1", domain.Item{Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductRequired)

	_, err = f.svc.SetGuestQuantity(ctx, "g1", "apple", -2)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.AddGuestItem(ctx, "", apple(1))
	assert.ErrorIs(t, err, domain.ErrOwnerRequired)

	assert.Equal(t, cartsignal.Snapshot{}, f.signals.Peek(cartsignal.GuestKey("g1")))
	assert.Empty(t, f.pub.changed())
}

func TestAuthMutationsBumpAuthSignal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	c, err := f.svc.AddItem(ctx, "u1", apple(1))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())

	c, err = f.svc.SetQuantity(ctx, "u1", "apple", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count())

	require.NoError(t, f.svc.ClearCart(ctx, "u1"))
	stored, err := f.svc.Cart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())

	assert.Equal(t, uint64(3), f.signals.Peek(cartsignal.UserKey("u1")).Auth)
	assert.Equal(t, uint64(0), f.signals.Peek(cartsignal.UserKey("u1")).Guest)
	for _, e := range f.pub.changed() {
		assert.Equal(t, domain.SourceAuth, e.Source)
	}
}

func TestCartOfUnknownUserIsEmpty(t *testing.T) {
	c, err := newFixture().svc.Cart(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.UserID)
	assert.True(t, c.IsEmpty())
}

func TestMergeGuestIntoUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.AddGuestItem(ctx, "g1", apple(2))
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "u1", apple(1))
	require.NoError(t, err)

	merged, err := f.svc.MergeGuestIntoUser(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Count())

	guestItems, err := f.svc.GuestItems(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, guestItems)

	assert.Equal(t, uint64(2), f.signals.Peek(cartsignal.GuestKey("g1")).Guest)
	assert.Equal(t, uint64(2), f.signals.Peek(cartsignal.UserKey("u1")).Auth)
}

func TestMergeEmptyGuestCartIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	c, err := f.svc.MergeGuestIntoUser(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Empty(t, f.pub.changed())
}

func TestPublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.pub.err = errors.New("queue full")

	items, err := f.svc.AddGuestItem(ctx, "g1", apple(1))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, uint64(1), f.signals.Peek(cartsignal.GuestKey("g1")).Guest)
	assert.Equal(t, 1.0, f.tel.Counter(observability.MExternalRequests,
		observability.L("peer", "outbox"),
		observability.L("endpoint", "cart.changed"),
		observability.L("outcome", "error"),
	))
}

func TestConcurrentGuestWritesAreSerialised(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.AddGuestItem(ctx, "g1", apple(1))
		}()
	}
	wg.Wait()

	items, err := f.svc.GuestItems(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 20, domain.Count(items))
	assert.Equal(t, uint64(20), f.signals.Peek(cartsignal.GuestKey("g1")).Guest)
}

type flakyGuestStore struct {
	*memory.GuestCartStore
	deleteErrs int
}

func (s *flakyGuestStore) Delete(ctx context.Context, guestID string) error {
	if s.deleteErrs > 0 {
		s.deleteErrs--
		return errors.New("disk full")
	}
	return s.GuestCartStore.Delete(ctx, guestID)
}

type failingCartRepo struct {
	*memory.ServerCartRepository
}

func (failingCartRepo) Save(context.Context, *domain.Cart) error { return errors.New("db down") }

func TestMergeRetryAfterGuestClearFailureDoesNotDouble(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	guests := &flakyGuestStore{GuestCartStore: f.guests, deleteErrs: 1}
	f.svc = NewService(f.carts, guests, f.signals, f.pub, f.tel)

	_, err := f.svc.AddGuestItem(ctx, "g1", apple(2))
	require.NoError(t, err)

	_, err = f.svc.MergeGuestIntoUser(ctx, "g1", "u1")
	require.Error(t, err)
	c, err := f.svc.Cart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	merged, err := f.svc.MergeGuestIntoUser(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Count())

	guestItems, err := f.svc.GuestItems(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, guestItems)
}

func TestMergeRestoresGuestCartWhenUserSaveFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.AddGuestItem(ctx, "g1", apple(2))
	require.NoError(t, err)

	svc := NewService(failingCartRepo{f.carts}, f.guests, f.signals, f.pub, f.tel)
	_, err = svc.MergeGuestIntoUser(ctx, "g1", "u1")
	require.Error(t, err)

	guestItems, err := f.svc.GuestItems(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, domain.Count(guestItems))
	assert.Equal(t, uint64(0), f.signals.Peek(cartsignal.UserKey("u1")).Auth)
	// add, take, restore
	assert.Equal(t, uint64(3), f.signals.Peek(cartsignal.GuestKey("g1")).Guest)
}

func TestOwnerLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	for _, g := range []string{"g1", "g2", "g3"} {
		_, err := f.svc.AddGuestItem(ctx, g, apple(1))
		require.NoError(t, err)
	}
	_, err := f.svc.AddItem(ctx, "u1", apple(1))
	require.NoError(t, err)

	assert.Zero(t, f.svc.locks.len())
}
