// Package trap intercepts host now-playing metadata writes and gates the
// real playback-start operation during transition announcements.
//
// The trap is the earliest point at which a track change is visible: the
// host assigns fresh now-playing metadata before audio for the new track
// becomes audible. On a title change the trap pauses the media element in the
// same turn, engages the playback lock, and publishes a Trigger event. The
// lock is cleared only by a Resume event from the coordinator; no other code
// path unlocks playback.
package trap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/segue/internal/bus"
	"github.com/MrWong99/segue/internal/observer"
	"github.com/MrWong99/segue/pkg/host"
	"github.com/MrWong99/segue/pkg/track"
)

// The trap itself satisfies host.Controller so callers that would start
// playback go through the lock gate instead of the real controller.
var _ host.Controller = (*Trap)(nil)

// Trap wraps the real playback controller and the now-playing metadata cell.
// It owns the playback lock and the last known title; the coordinator affects
// them only by publishing Resume. Safe for concurrent use.
type Trap struct {
	bus        *bus.Bus
	controller host.Controller
	obs        *observer.Observer

	mu        sync.Mutex
	locked    bool
	lastTitle string
	meta      host.Metadata
}

// New creates a [Trap] gating the given controller and registers its Resume
// listener on b.
func New(b *bus.Bus, controller host.Controller, obs *observer.Observer) *Trap {
	t := &Trap{bus: b, controller: controller, obs: obs}
	b.Subscribe(bus.KindResume, t.onResume)
	return t
}

// SetNowPlaying applies a host metadata assignment. The assignment is always
// stored so reads keep working transparently. The first assignment whose
// non-empty title differs from the last known title additionally pauses real
// playback, engages the lock, and publishes a Trigger event; repeated
// assignments with the same title are inert.
func (t *Trap) SetNowPlaying(ctx context.Context, meta host.Metadata) {
	t.mu.Lock()
	t.meta = meta
	changed := meta.Title != "" && meta.Title != t.lastTitle
	if changed {
		t.locked = true
		t.lastTitle = meta.Title
	}
	t.mu.Unlock()

	if !changed {
		return
	}

	// Pause before anything else runs so the new track never becomes audible.
	if err := t.controller.Pause(ctx); err != nil {
		slog.Warn("trap: pause on track change failed", "title", meta.Title, "err", err)
	}

	slog.Debug("track change detected", "title", meta.Title, "artist", meta.Artist)
	t.bus.Publish(bus.Event{
		Kind:     bus.KindTrigger,
		Current:  t.snapshotCurrent(meta),
		Upcoming: t.snapshotUpcoming(),
		Reason:   "metadata title change",
	})
}

// NowPlaying returns the stored now-playing metadata.
func (t *Trap) NowPlaying() host.Metadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta
}

// Locked reports whether the playback lock is currently engaged.
func (t *Trap) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

// Play starts real playback unless the lock is engaged, in which case the
// call is a no-op reporting trivial success.
func (t *Trap) Play(ctx context.Context) error {
	t.mu.Lock()
	locked := t.locked
	t.mu.Unlock()
	if locked {
		return nil
	}
	return t.controller.Play(ctx)
}

// Pause always forwards to the real controller.
func (t *Trap) Pause(ctx context.Context) error {
	return t.controller.Pause(ctx)
}

// onResume clears the lock and resumes real playback. This is the only
// unlock path.
func (t *Trap) onResume(bus.Event) {
	t.mu.Lock()
	t.locked = false
	t.mu.Unlock()

	if err := t.controller.Play(context.Background()); err != nil {
		slog.Warn("trap: resume playback failed", "err", err)
	}
}

// snapshotCurrent reads a fresh observer snapshot for the trigger payload.
// The assigned metadata is authoritative for identity: when the host state
// tree has not caught up with the change yet, the snapshot is synthesised
// from the assignment instead.
func (t *Trap) snapshotCurrent(meta host.Metadata) *track.Current {
	if cur, ok := t.obs.Current(); ok && cur.Title == meta.Title {
		return &cur
	}
	return &track.Current{
		Title:  meta.Title,
		Artist: meta.Artist,
		Album:  meta.Album,
		Paused: true,
	}
}

func (t *Trap) snapshotUpcoming() *track.Upcoming {
	if up, ok := t.obs.Upcoming(); ok {
		return &up
	}
	return nil
}
