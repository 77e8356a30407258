// Package host defines the boundary between segue and the music player it
// augments.
//
// A [Source] delivers snapshots of the player's internal state as a
// semi-structured [Tree]. The tree is owned by the host, not by segue: keys
// may be missing, renamed, or carry unexpected types from one host version to
// the next. Consumers must treat every read as best-effort and map any
// surprise to "no data" rather than an error.
//
// A [Controller] exposes the real play and pause operations on the host's
// active media element. The metadata trap wraps a Controller to gate playback
// during transitions; nothing else should call Play directly.
package host

import "context"

// Tree is a snapshot of the host player's semi-structured internal state.
// It follows JSON decoding conventions: objects are map[string]any, lists
// are []any, and numbers are float64.
//
// Known top-level keys (all optional):
//
//   - "nowPlaying": object with "title", "artist", "album" strings — the
//     platform now-playing metadata.
//   - "player": object with "status" (numeric [Status] code), "videoData"
//     (object with "title", "author"), "position", "duration" (seconds).
//   - "byline": the visible on-screen byline string ("Artist • Album • Year").
//   - "queue": object with "items" and "automixItems" lists. Each entry is
//     wrapped in one of two envelope shapes: {"queueItem": {...}} or
//     {"wrappedItem": {"primary": {...}}}. The inner record carries "title",
//     "artist", and a "selected" flag on the currently playing entry.
type Tree = map[string]any

// Source provides point-in-time snapshots of the host state tree.
//
// Snapshot returns the latest known tree, or (nil, false) when no state is
// available (host not connected yet, shim not injected, player torn down).
// Implementations must not block; a Source is read on every observer pass.
type Source interface {
	Snapshot() (Tree, bool)
}

// Controller performs the real playback operations on the host's active
// media element, bypassing any interception.
type Controller interface {
	// Play starts or resumes playback.
	Play(ctx context.Context) error

	// Pause halts playback immediately.
	Pause(ctx context.Context) error
}

// Metadata is the platform now-playing metadata assigned by the host when a
// track loads. Assignments flow through the metadata trap.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// Status enumerates the host player's known numeric state codes.
type Status int

const (
	StatusUnstarted Status = -1
	StatusEnded     Status = 0
	StatusPlaying   Status = 1
	StatusPaused    Status = 2
	StatusBuffering Status = 3
	StatusCued      Status = 5
)

// Playing reports whether s is a state in which audio is audibly advancing.
func (s Status) Playing() bool {
	return s == StatusPlaying || s == StatusBuffering
}

// String returns the human-readable name of the status code.
func (s Status) String() string {
	switch s {
	case StatusUnstarted:
		return "unstarted"
	case StatusEnded:
		return "ended"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusBuffering:
		return "buffering"
	case StatusCued:
		return "cued"
	default:
		return "unknown"
	}
}
