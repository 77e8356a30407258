package observer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/segue/pkg/host"
	hostmock "github.com/MrWong99/segue/pkg/host/mock"
	"github.com/MrWong99/segue/pkg/track"
)

func sourceWith(t *testing.T, tree host.Tree) *hostmock.Source {
	t.Helper()
	src := &hostmock.Source{}
	src.SetTree(tree)
	return src
}

// queueItem builds a queue entry in the plain envelope shape.
func queueItem(title, artist string, selected bool) map[string]any {
	return map[string]any{"queueItem": map[string]any{
		"title": title, "artist": artist, "selected": selected,
	}}
}

// wrappedItem builds a queue entry in the wrapper envelope shape.
func wrappedItem(title, artist string, selected bool) map[string]any {
	return map[string]any{"wrappedItem": map[string]any{
		"primary": map[string]any{"title": title, "artist": artist, "selected": selected},
	}}
}

func TestObserver_Current(t *testing.T) {
	t.Run("prefers now-playing metadata", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"nowPlaying": map[string]any{"title": "Naima", "artist": "John Coltrane", "album": "Giant Steps"},
			"player": map[string]any{
				"status":    float64(host.StatusPlaying),
				"videoData": map[string]any{"title": "wrong", "author": "wrong"},
				"position":  12.0,
				"duration":  240.0,
			},
		}))
		cur, ok := obs.Current()
		if !ok {
			t.Fatal("expected a current track")
		}
		want := track.Current{
			Title: "Naima", Artist: "John Coltrane", Album: "Giant Steps",
			Paused: false, Position: 12.0, Duration: 240.0,
		}
		if diff := cmp.Diff(want, cur); diff != "" {
			t.Errorf("current mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("falls back to video data", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"player": map[string]any{
				"videoData": map[string]any{"title": "So What", "author": "Miles Davis"},
			},
		}))
		cur, ok := obs.Current()
		if !ok {
			t.Fatal("expected a current track")
		}
		if cur.Title != "So What" || cur.Artist != "Miles Davis" {
			t.Errorf("unexpected fallback read: %+v", cur)
		}
	})

	t.Run("recovers album from byline", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"nowPlaying": map[string]any{"title": "So What", "artist": "Miles Davis"},
			"byline":     "Miles Davis • Kind of Blue • 1959",
		}))
		cur, _ := obs.Current()
		if cur.Album != "Kind of Blue" {
			t.Errorf("expected album from byline, got %q", cur.Album)
		}
	})

	t.Run("missing status accessor reads as paused", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"nowPlaying": map[string]any{"title": "A"},
		}))
		cur, _ := obs.Current()
		if !cur.Paused {
			t.Error("absent status accessor must be treated as paused")
		}
	})

	t.Run("status codes", func(t *testing.T) {
		tests := []struct {
			status     host.Status
			wantPaused bool
		}{
			{host.StatusPlaying, false},
			{host.StatusBuffering, false},
			{host.StatusPaused, true},
			{host.StatusEnded, true},
			{host.StatusCued, true},
			{host.StatusUnstarted, true},
		}
		for _, tt := range tests {
			obs := New(sourceWith(t, host.Tree{
				"player": map[string]any{"status": float64(tt.status)},
			}))
			cur, _ := obs.Current()
			if cur.Paused != tt.wantPaused {
				t.Errorf("status %v: paused = %v, want %v", tt.status, cur.Paused, tt.wantPaused)
			}
		}
	})

	t.Run("no snapshot is absent", func(t *testing.T) {
		obs := New(&hostmock.Source{})
		if _, ok := obs.Current(); ok {
			t.Error("expected absent read without a snapshot")
		}
	})

	t.Run("malformed shapes do not panic", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"nowPlaying": "not a map",
			"player":     []any{"also wrong"},
			"byline":     42,
		}))
		cur, ok := obs.Current()
		if !ok {
			t.Fatal("malformed subtrees should still yield a defaulted read")
		}
		if cur.Title != "" || !cur.Paused {
			t.Errorf("expected zero-value defaults, got %+v", cur)
		}
	})
}

func TestObserver_Upcoming(t *testing.T) {
	t.Run("returns entry after selected", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{
					queueItem("A", "Artist A", false),
					queueItem("B", "Artist B", true),
					queueItem("C", "Artist C", false),
				},
			},
		}))
		up, ok := obs.Upcoming()
		if !ok {
			t.Fatal("expected an upcoming track")
		}
		if up.Title != "C" || up.Artist != "Artist C" {
			t.Errorf("unexpected upcoming: %+v", up)
		}
	})

	t.Run("both envelope shapes unwrap", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{
					wrappedItem("A", "Artist A", true),
					queueItem("B", "Artist B", false),
				},
			},
		}))
		up, ok := obs.Upcoming()
		if !ok {
			t.Fatal("expected an upcoming track")
		}
		if up.Title != "B" {
			t.Errorf("unexpected upcoming: %+v", up)
		}
	})

	t.Run("automix continues the main list", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items":        []any{queueItem("A", "x", false), queueItem("B", "x", true)},
				"automixItems": []any{queueItem("C", "x", false)},
			},
		}))
		up, ok := obs.Upcoming()
		if !ok || up.Title != "C" {
			t.Errorf("expected automix entry C, got %+v ok=%v", up, ok)
		}
	})

	t.Run("selected last entry is absent", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{queueItem("A", "x", false), queueItem("B", "x", true)},
			},
		}))
		if _, ok := obs.Upcoming(); ok {
			t.Error("expected absent at end of queue")
		}
	})

	t.Run("no selected entry is absent", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{queueItem("A", "x", false), queueItem("B", "x", false)},
			},
		}))
		if _, ok := obs.Upcoming(); ok {
			t.Error("expected absent without a selected entry")
		}
	})

	t.Run("missing queue is absent", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{"nowPlaying": map[string]any{"title": "A"}}))
		if _, ok := obs.Upcoming(); ok {
			t.Error("expected absent without queue data")
		}
	})

	t.Run("unknown envelopes are skipped", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{
					map[string]any{"somethingElse": map[string]any{}},
					"not even a map",
					queueItem("A", "x", true),
					queueItem("B", "y", false),
				},
			},
		}))
		up, ok := obs.Upcoming()
		if !ok || up.Title != "B" {
			t.Errorf("expected B after skipping unknown envelopes, got %+v ok=%v", up, ok)
		}
	})

	t.Run("missing text fields use placeholders", func(t *testing.T) {
		obs := New(sourceWith(t, host.Tree{
			"queue": map[string]any{
				"items": []any{
					queueItem("A", "x", true),
					map[string]any{"queueItem": map[string]any{"selected": false}},
				},
			},
		}))
		up, ok := obs.Upcoming()
		if !ok {
			t.Fatal("expected an upcoming track")
		}
		if up.Title != track.UnknownTitle || up.Artist != track.UnknownArtist {
			t.Errorf("expected placeholders, got %+v", up)
		}
	})
}

func TestObserver_IdempotentReads(t *testing.T) {
	obs := New(sourceWith(t, host.Tree{
		"nowPlaying": map[string]any{"title": "A", "artist": "x"},
		"queue": map[string]any{
			"items": []any{queueItem("A", "x", true), queueItem("B", "y", false)},
		},
	}))

	cur1, ok1 := obs.Current()
	cur2, ok2 := obs.Current()
	if ok1 != ok2 || !cmp.Equal(cur1, cur2) {
		t.Errorf("current reads differ: %+v vs %+v", cur1, cur2)
	}

	up1, uok1 := obs.Upcoming()
	up2, uok2 := obs.Upcoming()
	if uok1 != uok2 || !cmp.Equal(up1, up2) {
		t.Errorf("upcoming reads differ: %+v vs %+v", up1, up2)
	}
}
