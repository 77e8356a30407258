package trap

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/segue/pkg/host"
)

// startMonitor runs m until the test ends.
func startMonitor(t *testing.T, m *Monitor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMonitor_ReplaysNowPlayingIntoTrap(t *testing.T) {
	h := newHarness(t)
	h.source.SetTree(host.Tree{
		"nowPlaying": map[string]any{"title": "B", "artist": "Artist B", "album": "Album B"},
	})

	startMonitor(t, NewMonitor(h.source, h.trap, 5*time.Millisecond))

	waitFor(t, "metadata replay", func() bool { return h.trap.NowPlaying().Title == "B" })
	if got := h.trap.NowPlaying(); got.Artist != "Artist B" || got.Album != "Album B" {
		t.Errorf("replayed metadata incomplete: %+v", got)
	}
	if !h.trap.Locked() {
		t.Error("expected the replayed change to engage the lock")
	}
}

func TestMonitor_SteadyStateStaysInert(t *testing.T) {
	h := newHarness(t)
	h.source.SetTree(host.Tree{
		"nowPlaying": map[string]any{"title": "B"},
	})

	startMonitor(t, NewMonitor(h.source, h.trap, 2*time.Millisecond))

	waitFor(t, "first replay", func() bool { return h.trap.NowPlaying().Title == "B" })
	time.Sleep(30 * time.Millisecond)

	if h.controller.PauseCalls() != 1 {
		t.Errorf("steady state must not keep pausing, got %d pauses", h.controller.PauseCalls())
	}
}

func TestMonitor_IgnoresTreesWithoutNowPlaying(t *testing.T) {
	h := newHarness(t)
	h.source.SetTree(host.Tree{
		"player": map[string]any{"status": float64(host.StatusPlaying)},
	})

	startMonitor(t, NewMonitor(h.source, h.trap, 2*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	if h.trap.Locked() {
		t.Error("a tree without now-playing data must not trigger")
	}
	if got := h.trap.NowPlaying().Title; got != "" {
		t.Errorf("unexpected stored title %q", got)
	}
}

func TestMonitor_PicksUpTrackChange(t *testing.T) {
	h := newHarness(t)
	h.source.SetTree(host.Tree{
		"nowPlaying": map[string]any{"title": "B"},
	})

	startMonitor(t, NewMonitor(h.source, h.trap, 2*time.Millisecond))
	waitFor(t, "first replay", func() bool { return h.trap.NowPlaying().Title == "B" })

	h.source.SetTree(host.Tree{
		"nowPlaying": map[string]any{"title": "C", "artist": "Artist C"},
	})

	waitFor(t, "change replay", func() bool { return h.trap.NowPlaying().Title == "C" })
	waitFor(t, "second pause", func() bool { return h.controller.PauseCalls() == 2 })
}
