package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusDeliversToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var mu sync.Mutex
	got := map[string]int{}
	for _, who := range []string{"a", "b"} {
		bus.Subscribe("cart.changed", func(_ context.Context, _ domoutbox.Event) error {
			mu.Lock()
			got[who]++
			mu.Unlock()
			return nil
		})
	}

	bus.Start(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, testEvent{"cart.changed"}))
	}
	require.NoError(t, bus.Publish(ctx, testEvent{"order.placed"}))
	bus.Stop(ctx)

	assert.Equal(t, map[string]int{"a": 5, "b": 5}, got)
}

func TestPublishAfterStopReturnsErrClosed(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	bus.Stop(ctx)

	err := bus.Publish(ctx, testEvent{"cart.changed"})
	assert.ErrorIs(t, err, ErrClosed)

	// a second Stop is a no-op
	bus.Stop(ctx)
}

func TestPublishNilEventIsIgnored(t *testing.T) {
	bus := NewBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), nil))
	bus.Stop(context.Background())
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var delivered atomic.Int32
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error { panic("handler bug") })
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error {
		delivered.Add(1)
		return errors.New("ignored")
	})

	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{"boom"}))
	require.NoError(t, bus.Publish(ctx, testEvent{"boom"}))
	bus.Stop(ctx)

	assert.Equal(t, int32(2), delivered.Load())
}

func TestPublishHonoursContextWhenQueueFull(t *testing.T) {
	bus := NewBus(nil)
	// not started, so nothing drains the queue
	for i := 0; i < queueSize; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent{"x"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, testEvent{"x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	bus.Stop(context.Background())
}

func TestStopWaitsForInFlightHandlers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var finished atomic.Bool
	bus.Subscribe("slow", func(context.Context, domoutbox.Event) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{"slow"}))
	bus.Stop(ctx)

	assert.True(t, finished.Load())
}
