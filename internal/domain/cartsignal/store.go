// Package cartsignal holds versioned change signals for carts. A signal says that something
// changed, never what: consumers compare a remembered Snapshot with the current one and
// recompute when they differ.
package cartsignal

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the set of signal values read together by a consumer.
type Snapshot struct {
	Guest   uint64    `json:"guest"`
	Auth    uint64    `json:"auth"`
	Touched time.Time `json:"touched"`
}

// Store is the signal state of one cart owner. Counters only ever grow; they restart from
// zero with the process.
type Store struct {
	guest   atomic.Uint64
	auth    atomic.Uint64
	touched atomic.Int64 // unix nanos
	now     func() time.Time

	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
}

// NewStore returns a standalone store on the wall clock. Registry-owned stores share the
// registry's clock instead.
func NewStore() *Store {
	return newStore(time.Now)
}

func newStore(now func() time.Time) *Store {
	s := &Store{now: now, subs: make(map[chan Snapshot]struct{})}
	s.touched.Store(now().UnixNano())
	return s
}

// BumpGuest increments the guest counter and returns its new value.
func (s *Store) BumpGuest() uint64 {
	v := s.guest.Add(1)
	s.notify()
	return v
}

// BumpAuth increments the authenticated-cart counter and returns its new value.
func (s *Store) BumpAuth() uint64 {
	v := s.auth.Add(1)
	s.notify()
	return v
}

// Touch records the current time as the last guest-cart update.
func (s *Store) Touch() time.Time {
	t := s.now()
	s.touched.Store(t.UnixNano())
	s.notify()
	return t
}

// Guest is the current guest counter.
func (s *Store) Guest() uint64 { return s.guest.Load() }

// Auth is the current authenticated-cart counter.
func (s *Store) Auth() uint64 { return s.auth.Load() }

// Touched is the last guest-cart update in UTC, or the creation time if there was none.
func (s *Store) Touched() time.Time { return time.Unix(0, s.touched.Load()).UTC() }

// Snapshot reads all three signals. The fields are loaded one at a time, so a snapshot
// taken during a bump may mix values from before and after it.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Guest: s.Guest(), Auth: s.Auth(), Touched: s.Touched()}
}

// Subscribe returns a channel that receives the latest snapshot after every bump or touch.
// Deliveries are coalesced: a slow reader sees the newest value, and a bump never blocks.
// cancel closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale value, keep the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
