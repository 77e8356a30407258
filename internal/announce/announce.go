// Package announce defines the asynchronous boundary to the external
// announcement service — the collaborator that generates, caches, and plays
// the spoken transition audio.
//
// segue never touches audio itself. It sends fire-and-forget requests
// (ANNOUNCE_NOW, PREWARM) and listens for ANNOUNCE_FINISHED signals. The only
// ordering guarantee is that a completion signal, if it arrives at all,
// arrives after the request it answers.
package announce

import "context"

// Message type tags on the announcement service wire protocol.
const (
	TypeAnnounceNow      = "ANNOUNCE_NOW"
	TypePrewarm          = "PREWARM"
	TypeAnnounceFinished = "ANNOUNCE_FINISHED"
)

// Request describes one track-pair transition for the service to voice.
type Request struct {
	// PairKey identifies the transition (see track.PairKey).
	PairKey string

	PreviousTitle  string
	PreviousArtist string
	NewTitle       string
	NewArtist      string

	// TimeOfDay is the local daypart bucket ("morning", …). Only sent with
	// prewarm requests so cached announcements can match the listening hour.
	TimeOfDay string
}

// Service is the coordinator's view of the announcement backend.
//
// Both request methods are fire-and-forget: a nil return means the request
// was handed off, not that any audio exists or will ever play. Completion is
// reported exclusively through the Finished channel.
type Service interface {
	// Announce asks the service to play the transition for req immediately,
	// generating it first if it is not cached.
	Announce(ctx context.Context, req Request) error

	// Prewarm asks the service to generate and cache the transition for req
	// without playing it.
	Prewarm(ctx context.Context, req Request) error

	// Finished returns the channel on which completion signals arrive. One
	// receive corresponds to at most one finished announcement; the service
	// may also never signal (see the coordinator's bounded wait).
	Finished() <-chan struct{}
}

// Silent is a [Service] that announces nothing and completes instantly. It
// is the terminal fallback: with Silent in place a transition degrades to a
// brief pause instead of a stuck lock.
type Silent struct {
	finished chan struct{}
}

var _ Service = (*Silent)(nil)

// NewSilent creates a [Silent] service.
func NewSilent() *Silent {
	return &Silent{finished: make(chan struct{}, 1)}
}

// Announce signals completion immediately without producing audio.
func (s *Silent) Announce(context.Context, Request) error {
	select {
	case s.finished <- struct{}{}:
	default:
	}
	return nil
}

// Prewarm is a no-op; there is nothing to cache.
func (s *Silent) Prewarm(context.Context, Request) error { return nil }

// Finished implements [Service].
func (s *Silent) Finished() <-chan struct{} { return s.finished }
