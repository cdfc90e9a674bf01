package cart

import "time"

type Source string

const (
	SourceGuest Source = "guest"
	SourceAuth  Source = "auth"
)

// ChangedEvent is emitted after a cart write and the matching signal bump.
type ChangedEvent struct {
	OwnerID    string
	Source     Source
	Version    uint64
	OccurredAt time.Time
}

func (ChangedEvent) EventName() string { return "cart.changed" }

func NewChangedEvent(ownerID string, source Source, version uint64) ChangedEvent {
	return ChangedEvent{
		OwnerID:    ownerID,
		Source:     source,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}
}
