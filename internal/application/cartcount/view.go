package cartcount

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"

	"github.com/golang/groupcache/lru"
)

// DefaultViewSize bounds how many guest sessions the view remembers.
const DefaultViewSize = 10000

// View memoises reconciled counts per guest session. A cached count is reused while the
// authentication mode and the observed signals are unchanged, so a cart write that skips
// the signal bump stays invisible here until something else moves a signal.
//
// Entries are kept in LRU order and the least recently counted session is evicted once
// the view is full. An evicted session simply re-evaluates on its next Count.
type View struct {
	rec *Reconciler

	mu          sync.Mutex
	entries     *lru.Cache // guest ID -> viewEntry
	evaluations int
}

type viewKey struct {
	authenticated bool
	userID        string
	guest         uint64
	auth          uint64
	touched       int64
}

type viewEntry struct {
	key    viewKey
	result Result
}

type ViewOption func(*View)

// WithViewSize caps the number of memoised sessions. Values below one keep the default.
func WithViewSize(n int) ViewOption {
	return func(v *View) {
		if n > 0 {
			v.entries = lru.New(n)
		}
	}
}

func NewView(rec *Reconciler, opts ...ViewOption) *View {
	v := &View{rec: rec, entries: lru.New(DefaultViewSize)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func keyOf(id auth.Identity, snap cartsignal.Snapshot) viewKey {
	k := viewKey{
		authenticated: id.Authenticated,
		guest:         snap.Guest,
		auth:          snap.Auth,
		touched:       snap.Touched.UnixNano(),
	}
	if id.Authenticated {
		k.userID = id.UserID
	}
	return k
}

// Count returns the memoised result for id, re-evaluating when its key has moved.
func (v *View) Count(ctx context.Context, id auth.Identity) Result {
	key := keyOf(id, v.rec.Signals(id))

	v.mu.Lock()
	if cached, ok := v.entries.Get(id.GuestID); ok {
		if e := cached.(viewEntry); e.key == key {
			v.mu.Unlock()
			return e.result
		}
	}
	v.mu.Unlock()

	res, _ := v.rec.Execute(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.evaluations++
	// keep the entry keyed by the signals the evaluation actually read
	v.entries.Add(id.GuestID, viewEntry{key: keyOf(id, res.Signals), result: res})
	return res
}

// Forget drops the memoised entry of a guest session.
func (v *View) Forget(guestID string) {
	v.mu.Lock()
	v.entries.Remove(guestID)
	v.mu.Unlock()
}

// Len reports how many sessions are memoised.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entries.Len()
}

// Evaluations reports how many times the view has run the reconciler.
func (v *View) Evaluations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.evaluations
}
