// Package track defines the shared track types used across all segue packages.
//
// These types are the lingua franca between the host observer, the metadata
// trap, and the transition coordinator. They are deliberately small: segue has
// no stable track IDs, so a track is whatever the host reports about it at
// read time.
package track

import "strings"

// Current describes the track presently loaded in the player. Values are
// recomputed from the host on every read and never mutated in place.
type Current struct {
	// Title is the track title. Empty when the host reports nothing.
	Title string

	// Artist is the performing artist. Empty when unknown.
	Artist string

	// Album is the album name. Often missing; recovered from the on-screen
	// byline when the host metadata omits it.
	Album string

	// Paused reports whether playback is currently paused. When the host's
	// status accessor is absent this defaults to true.
	Paused bool

	// Position and Duration are playback offsets in seconds. Zero when the
	// host does not expose them.
	Position float64
	Duration float64
}

// Upcoming describes the next track in the play queue.
type Upcoming struct {
	Title  string
	Artist string
}

// Fallback display values used when the host queue entry carries no text.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

// PairKey identifies the transition from one track to the next. It is the
// deduplication unit for both announcing and prewarming.
//
// Identity is title-only: the host exposes no stable track ID, so two
// distinct tracks sharing a title produce the same key. That collision is an
// accepted limitation of the host data, not something PairKey papers over.
func PairKey(from, to string) string {
	return from + "::" + to
}

// SamePair reports whether the pair (from, to) matches key.
func SamePair(key, from, to string) bool {
	return key == PairKey(from, to)
}

// TimeOfDay buckets a local hour into the coarse daypart sent with prewarm
// requests, so the announcement service can vary its phrasing.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// SplitByline recovers artist and album from an on-screen byline string of
// the form "Artist • Album • Year". It returns empty strings for segments
// that are missing.
func SplitByline(byline string) (artist, album string) {
	parts := strings.Split(byline, "•")
	if len(parts) > 0 {
		artist = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		album = strings.TrimSpace(parts[1])
	}
	return artist, album
}
