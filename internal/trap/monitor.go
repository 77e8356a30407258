package trap

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/segue/pkg/host"
)

// defaultWatchInterval keeps trigger latency well under the shortest real
// track gap while staying cheap against an in-memory snapshot.
const defaultWatchInterval = 250 * time.Millisecond

// Monitor adapts pull-based host sources to the push-based trap. Remote
// sources only expose state snapshots, so the monitor re-reads the
// now-playing cell on a short interval and replays each fresh assignment
// into [Trap.SetNowPlaying]. The trap's own same-title check makes the
// repeated replays inert.
type Monitor struct {
	src      host.Source
	trap     *Trap
	interval time.Duration
}

// NewMonitor creates a [Monitor] feeding t from src. A non-positive interval
// selects the default.
func NewMonitor(src host.Source, t *Trap, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Monitor{src: src, trap: t, interval: interval}
}

// Run replays now-playing assignments until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Debug("metadata watch started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if meta, ok := m.read(); ok {
				m.trap.SetNowPlaying(ctx, meta)
			}
		}
	}
}

// read extracts the now-playing metadata from the current snapshot. The tree
// is foreign data; anything malformed reads as absent.
func (m *Monitor) read() (host.Metadata, bool) {
	tree, ok := m.src.Snapshot()
	if !ok {
		return host.Metadata{}, false
	}
	np, ok := tree["nowPlaying"].(map[string]any)
	if !ok {
		return host.Metadata{}, false
	}
	meta := host.Metadata{}
	meta.Title, _ = np["title"].(string)
	meta.Artist, _ = np["artist"].(string)
	meta.Album, _ = np["album"].(string)
	return meta, meta.Title != ""
}
