package cartsignal

import (
	"strings"
	"sync"
	"time"
)

// Registry hands out one Store per cart owner. It is constructed once and injected into
// every component that reads or bumps signals.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	now    func() time.Time
}

type Option func(*Registry)

// WithClock overrides the time source used by Touch.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{stores: make(map[string]*Store), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const (
	guestPrefix = "guest:"
	userPrefix  = "user:"
)

// GuestKey and UserKey namespace owner IDs so a guest and a user never share a Store.
func GuestKey(guestID string) string { return guestPrefix + guestID }

func UserKey(userID string) string { return userPrefix + userID }

// GuestID reverses GuestKey.
func GuestID(owner string) (string, bool) { return strings.CutPrefix(owner, guestPrefix) }

// For returns the store for owner, creating it on first use. Writers should go through
// BumpGuest, BumpAuth and Subscribe instead so a concurrent Sweep cannot orphan the store.
func (r *Registry) For(owner string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(owner)
}

func (r *Registry) storeLocked(owner string) *Store {
	s, ok := r.stores[owner]
	if !ok {
		s = newStore(r.now)
		r.stores[owner] = s
	}
	return s
}

// BumpGuest increments the guest counter of owner and touches it, returning the new counter.
func (r *Registry) BumpGuest(owner string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.storeLocked(owner)
	v := s.BumpGuest()
	s.Touch()
	return v
}

// BumpAuth increments the authenticated-cart counter of owner and returns its new value.
func (r *Registry) BumpAuth(owner string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(owner).BumpAuth()
}

// Subscribe is Store.Subscribe on owner's store. A subscribed store is never swept.
func (r *Registry) Subscribe(owner string) (<-chan Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(owner).Subscribe()
}

// Sweep drops stores untouched since before the idle window that have no subscribers and
// an auth counter of zero, and returns their owner keys.
//
// Dropping such a store is invisible to readers: a guest store that comes back carries a
// fresh Touched time, and an auth counter of zero reads the same as a missing store. User
// stores that were ever bumped are kept, since a restarted auth counter could repeat a
// value a consumer has already seen.
func (r *Registry) Sweep(idle time.Duration) []string {
	cutoff := r.now().Add(-idle).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []string
	for owner, s := range r.stores {
		if s.auth.Load() != 0 || s.touched.Load() > cutoff || s.subscribers() > 0 {
			continue
		}
		delete(r.stores, owner)
		dropped = append(dropped, owner)
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Peek returns the snapshot for owner without creating a store; unknown owners read as zero.
func (r *Registry) Peek(owner string) Snapshot {
	r.mu.Lock()
	s, ok := r.stores[owner]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}
	}
	return s.Snapshot()
}

// Combined is the snapshot a client observes: the guest counter and timestamp of its guest
// session plus the auth counter of its user, when it has one.
func (r *Registry) Combined(guestID, userID string) Snapshot {
	snap := r.Peek(GuestKey(guestID))
	snap.Auth = 0
	if userID != "" {
		snap.Auth = r.Peek(UserKey(userID)).Auth
	}
	return snap
}
