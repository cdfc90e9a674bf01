package cartcount

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
)

const janitorService = "cart-signal-janitor"

// Janitor expires idle guest sessions: it sweeps the signal registry and drops the
// swept guests from the view.
type Janitor struct {
	signals  *cartsignal.Registry
	view     *View
	idle     time.Duration
	interval time.Duration
	log      observability.Logger
}

func NewJanitor(signals *cartsignal.Registry, view *View, idle, interval time.Duration, tel observability.Observability) *Janitor {
	tel = observability.Or(tel)
	return &Janitor{
		signals:  signals,
		view:     view,
		idle:     idle,
		interval: interval,
		log:      tel.Logger().With(observability.F("service", janitorService)),
	}
}

// Sweep runs one pass and returns how many owners it expired.
func (j *Janitor) Sweep() int {
	dropped := j.signals.Sweep(j.idle)
	for _, owner := range dropped {
		if guestID, ok := cartsignal.GuestID(owner); ok && j.view != nil {
			j.view.Forget(guestID)
		}
	}
	if len(dropped) > 0 {
		j.log.Debug("cart_signals_swept",
			observability.F("expired", len(dropped)),
			observability.F("remaining", j.signals.Len()),
		)
	}
	return len(dropped)
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			j.Sweep()
		}
	}
}
