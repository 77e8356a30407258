// Package observer derives current- and upcoming-track snapshots from the
// host state tree.
//
// The tree is externally owned and only loosely structured: keys disappear,
// envelope shapes change, and a snapshot can race the event that prompted the
// read. Every read here is therefore best-effort and pure — no caching, no
// mutation, and no error ever escapes. Anything unexpected, including a
// panic while walking the tree, resolves to "no data this read".
package observer

import (
	"github.com/MrWong99/segue/pkg/host"
	"github.com/MrWong99/segue/pkg/track"
)

// Observer reads track snapshots from a host source.
type Observer struct {
	src host.Source
}

// New creates an [Observer] over src.
func New(src host.Source) *Observer {
	return &Observer{src: src}
}

// Current reads the presently loaded track. It reports false when the host
// has no snapshot at all; otherwise missing fields default to zero values,
// and a missing status accessor is treated as paused.
func (o *Observer) Current() (cur track.Current, ok bool) {
	defer func() {
		// The tree is foreign data; a malformed shape must read as absent.
		if recover() != nil {
			cur, ok = track.Current{}, false
		}
	}()

	tree, haveTree := o.src.Snapshot()
	if !haveTree {
		return track.Current{}, false
	}

	cur = track.Current{Paused: true}

	// Platform now-playing metadata is the preferred source.
	if np, found := asMap(tree["nowPlaying"]); found {
		cur.Title = asString(np["title"])
		cur.Artist = asString(np["artist"])
		cur.Album = asString(np["album"])
	}

	player, havePlayer := asMap(tree["player"])
	if havePlayer {
		// Fall back to the player's own video data accessor.
		if cur.Title == "" {
			if vd, found := asMap(player["videoData"]); found {
				cur.Title = asString(vd["title"])
				if cur.Artist == "" {
					cur.Artist = asString(vd["author"])
				}
			}
		}
		if status, found := asNumber(player["status"]); found {
			cur.Paused = !host.Status(int(status)).Playing()
		}
		cur.Position, _ = asNumber(player["position"])
		cur.Duration, _ = asNumber(player["duration"])
	}

	// The on-screen byline is the last resort for artist/album.
	if cur.Album == "" || cur.Artist == "" {
		artist, album := track.SplitByline(asString(tree["byline"]))
		if cur.Artist == "" {
			cur.Artist = artist
		}
		if cur.Album == "" {
			cur.Album = album
		}
	}

	return cur, true
}

// Upcoming reads the next queued track. It reports false when the queue is
// unavailable, no entry is flagged selected, or the selected entry is the
// last one. Missing text fields default to the Unknown placeholders.
func (o *Observer) Upcoming() (up track.Upcoming, ok bool) {
	defer func() {
		if recover() != nil {
			up, ok = track.Upcoming{}, false
		}
	}()

	tree, haveTree := o.src.Snapshot()
	if !haveTree {
		return track.Upcoming{}, false
	}

	queue, found := asMap(tree["queue"])
	if !found {
		return track.Upcoming{}, false
	}

	// One logical queue: the main list followed by the automix continuation.
	entries := append(asList(queue["items"]), asList(queue["automixItems"])...)

	records := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if record, found := unwrap(entry); found {
			records = append(records, record)
		}
	}

	selected := -1
	for i, record := range records {
		if flag, _ := record["selected"].(bool); flag {
			selected = i
			break
		}
	}
	if selected < 0 || selected >= len(records)-1 {
		return track.Upcoming{}, false
	}

	next := records[selected+1]
	up = track.Upcoming{
		Title:  asString(next["title"]),
		Artist: asString(next["artist"]),
	}
	if up.Title == "" {
		up.Title = track.UnknownTitle
	}
	if up.Artist == "" {
		up.Artist = track.UnknownArtist
	}
	return up, true
}

// unwrap extracts the renderer record from one of the two known queue entry
// envelope shapes. Unknown shapes are skipped, not errors.
func unwrap(entry any) (map[string]any, bool) {
	m, found := asMap(entry)
	if !found {
		return nil, false
	}
	if record, found := asMap(m["queueItem"]); found {
		return record, true
	}
	if wrapper, found := asMap(m["wrappedItem"]); found {
		if record, found := asMap(wrapper["primary"]); found {
			return record, true
		}
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asNumber accepts the numeric types a tree can plausibly carry. JSON decodes
// to float64, but hand-built trees (and the MPD source) may use ints.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
