package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/segue/internal/bus"
)

// defaultPollInterval is how often the poller re-reads the host when no
// interval is configured.
const defaultPollInterval = 5 * time.Second

// Poller periodically re-reads the host and publishes Update events so the
// coordinator sees queue data that arrived after the track-change trigger
// fired. It also answers DataRequest events with a DataReturn snapshot,
// which the coordinator uses to bootstrap on startup.
type Poller struct {
	obs      *Observer
	bus      *bus.Bus
	interval time.Duration
}

// NewPoller creates a [Poller] and registers its DataRequest listener.
// The poll loop itself does not start until [Poller.Run].
func NewPoller(obs *Observer, b *bus.Bus, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &Poller{obs: obs, bus: b, interval: interval}
	b.Subscribe(bus.KindDataRequest, func(bus.Event) {
		p.publish(bus.KindDataReturn, "initial data request")
	})
	return p
}

// Run publishes Update events on the configured interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Debug("observer poll loop started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.publish(bus.KindUpdate, "poll refresh")
		}
	}
}

// publish reads a fresh snapshot and broadcasts it under the given kind.
// Nothing is published while the host has no data at all.
func (p *Poller) publish(kind bus.Kind, reason string) {
	cur, haveCur := p.obs.Current()
	if !haveCur {
		return
	}
	ev := bus.Event{Kind: kind, Current: &cur, Reason: reason}
	if up, haveUp := p.obs.Upcoming(); haveUp {
		ev.Upcoming = &up
	}
	p.bus.Publish(ev)
}
