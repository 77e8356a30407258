package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/segue/internal/announce"
	"github.com/MrWong99/segue/internal/observe"
	"github.com/MrWong99/segue/pkg/track"
)

// scheduler owns the deferred prewarm logic. Only one timer is ever armed:
// scheduling a new pair replaces the pending one, so a listener skipping
// through tracks never floods the announcement service with generation
// requests. A pair must stay the live transition for the full delay before
// its prewarm is dispatched, and each pair is dispatched at most once per
// session.
type scheduler struct {
	delay   time.Duration
	svc     announce.Service
	metrics *observe.Metrics

	// livePair reports the coordinator's current transition pair at fire
	// time, for revalidation.
	livePair func() (from, to string, ok bool)

	mu        sync.Mutex
	timer     *time.Timer
	processed map[string]struct{}
}

// schedule arms the deferred check for req's pair, replacing any pending
// timer.
func (s *scheduler) schedule(req announce.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	slog.Debug("prefetch scheduled", "pair", req.PairKey, "delay", s.delay)
	s.timer = time.AfterFunc(s.delay, func() { s.fire(req) })
}

// stop cancels any pending timer.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire runs the deferred check for req. The pair is dispatched only when it
// is still the live transition and has not been dispatched before this
// session.
func (s *scheduler) fire(req announce.Request) {
	ctx := context.Background()

	from, to, ok := s.livePair()
	if !ok || !track.SamePair(req.PairKey, from, to) {
		s.metrics.RecordPrefetchAbandoned(ctx, "stale")
		slog.Debug("prefetch abandoned, pair no longer live", "pair", req.PairKey)
		return
	}

	s.mu.Lock()
	if _, done := s.processed[req.PairKey]; done {
		s.mu.Unlock()
		s.metrics.RecordPrefetchAbandoned(ctx, "duplicate")
		return
	}
	s.processed[req.PairKey] = struct{}{}
	s.mu.Unlock()

	req.TimeOfDay = track.TimeOfDay(time.Now().Hour())
	if err := s.svc.Prewarm(ctx, req); err != nil {
		// The pair stays marked processed: a prewarm is an optimisation and
		// the announcement can still be generated on demand at change time.
		slog.Warn("coordinator: prewarm request failed", "pair", req.PairKey, "err", err)
		return
	}
	s.metrics.PrefetchDispatched.Add(ctx, 1)
	slog.Info("prewarm dispatched", "pair", req.PairKey, "timeOfDay", req.TimeOfDay)
}

// dispatched reports whether a prewarm was already sent for key this session.
func (s *scheduler) dispatched(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[key]
	return ok
}
