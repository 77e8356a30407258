// Package coordinator implements the transition state machine at the heart of
// segue.
//
// The coordinator subscribes to the transition event bus, decides per track
// change whether an announcement is due, holds the playback lock lifecycle
// open while the announcement service works, and owns the deferred prewarm
// scheduling for upcoming track pairs. It never touches host internals
// directly; everything it knows arrives as bus events, and everything it
// wants done leaves as a bus event or a service request.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/segue/internal/announce"
	"github.com/MrWong99/segue/internal/bus"
	"github.com/MrWong99/segue/internal/observe"
	"github.com/MrWong99/segue/pkg/track"
)

// Defaults for the timing knobs. The completion wait bound has no natural
// value; 30 seconds comfortably covers the longest plausible spoken
// transition while keeping a silent failure audibly short.
const (
	DefaultAnnounceTimeout = 30 * time.Second
	DefaultPrefetchDelay   = 15 * time.Second
)

// Coordinator is the transition state machine. It is either idle or
// announcing; while announcing the playback lock is engaged and the
// coordinator waits, bounded, for the service's completion signal before
// publishing Resume. Safe for concurrent use.
type Coordinator struct {
	bus     *bus.Bus
	svc     announce.Service
	metrics *observe.Metrics

	announceTimeout time.Duration

	mu         sync.Mutex
	current    *track.Current
	upcoming   *track.Upcoming
	announcing bool
	lockedAt   time.Time
	waitGen    uint64
	waitTimer  *time.Timer

	sched *scheduler
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithAnnounceTimeout bounds the wait for a completion signal. After the
// bound expires the coordinator force-publishes Resume so playback can never
// stay locked on a dead announcement service.
func WithAnnounceTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.announceTimeout = d }
}

// WithPrefetchDelay sets the deferred-check delay before a prewarm is
// dispatched for a scheduled pair.
func WithPrefetchDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.sched.delay = d }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
		c.sched.metrics = m
	}
}

// New creates a [Coordinator] and registers its listeners on b. The
// coordinator handles Trigger, Update and DataReturn events; completion
// signals are consumed by [Coordinator.Run].
func New(b *bus.Bus, svc announce.Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:             b,
		svc:             svc,
		metrics:         observe.DefaultMetrics(),
		announceTimeout: DefaultAnnounceTimeout,
	}
	c.sched = &scheduler{
		delay:     DefaultPrefetchDelay,
		svc:       svc,
		metrics:   c.metrics,
		livePair:  c.livePair,
		processed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	b.Subscribe(bus.KindTrigger, c.onTrigger)
	b.Subscribe(bus.KindUpdate, c.onUpdate)
	b.Subscribe(bus.KindDataReturn, c.onDataReturn)
	return c
}

// Run requests an initial snapshot and then consumes completion signals from
// the announcement service until ctx is cancelled. It must be running for
// transitions to ever resume.
func (c *Coordinator) Run(ctx context.Context) error {
	c.bus.Publish(bus.Event{Kind: bus.KindDataRequest, Reason: "startup snapshot"})

	for {
		select {
		case <-ctx.Done():
			c.sched.stop()
			return ctx.Err()
		case <-c.svc.Finished():
			c.onFinished(ctx)
		}
	}
}

// SetTiming applies reloaded timing knobs. Values <= 0 leave the current
// setting untouched. A transition already in flight keeps the bound it
// started with.
func (c *Coordinator) SetTiming(announceTimeout, prefetchDelay time.Duration) {
	if announceTimeout > 0 {
		c.mu.Lock()
		c.announceTimeout = announceTimeout
		c.mu.Unlock()
	}
	if prefetchDelay > 0 {
		c.sched.mu.Lock()
		c.sched.delay = prefetchDelay
		c.sched.mu.Unlock()
	}
}

// Announcing reports whether a transition announcement is currently pending.
func (c *Coordinator) Announcing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.announcing
}

// onTrigger handles a confirmed track change from the trap. The trap has
// already engaged the lock and paused playback by the time this runs.
func (c *Coordinator) onTrigger(ev bus.Event) {
	c.handleChange(ev, "trigger", true)
}

// onUpdate handles a queue refresh from the observer poll loop. A differing
// current title means the trap missed a change, so the event is escalated to
// a full transition; a differing upcoming title alone just reschedules the
// prewarm, since queue data can arrive after the change already fired.
func (c *Coordinator) onUpdate(ev bus.Event) {
	c.mu.Lock()
	storedTitle := ""
	if c.current != nil {
		storedTitle = c.current.Title
	}
	changed := ev.Current != nil && ev.Current.Title != "" && ev.Current.Title != storedTitle

	if !changed {
		upcomingChanged := ev.Upcoming != nil && (c.upcoming == nil || c.upcoming.Title != ev.Upcoming.Title)
		if upcomingChanged {
			up := *ev.Upcoming
			c.upcoming = &up
		}
		cur := c.current
		c.mu.Unlock()
		if upcomingChanged && cur != nil {
			slog.Debug("upcoming track changed", "title", ev.Upcoming.Title)
			c.schedulePrefetch(*cur, ev.Upcoming)
		}
		return
	}
	c.mu.Unlock()

	c.handleChange(ev, "update", false)
}

// onDataReturn handles the startup snapshot. It is a passive bootstrap: state
// is initialised and a prewarm scheduled, but no lock or announcement logic
// runs.
func (c *Coordinator) onDataReturn(ev bus.Event) {
	c.mu.Lock()
	if c.current != nil || ev.Current == nil {
		c.mu.Unlock()
		return
	}
	cur := *ev.Current
	c.current = &cur
	if ev.Upcoming != nil {
		up := *ev.Upcoming
		c.upcoming = &up
	}
	c.mu.Unlock()

	slog.Debug("initial snapshot received", "title", cur.Title)
	if ev.Upcoming != nil {
		c.schedulePrefetch(cur, ev.Upcoming)
	}
}

// handleChange runs the transition sequence: store the new snapshot, announce
// the previous→new pair when there is one, and schedule a prewarm for the
// new→upcoming pair. lockHeld tells whether the trap engaged the lock for
// this change; only then is an immediate Resume owed when there is nothing to
// announce.
func (c *Coordinator) handleChange(ev bus.Event, source string, lockHeld bool) {
	if ev.Current == nil {
		return
	}

	c.mu.Lock()
	prev := c.current
	cur := *ev.Current
	c.current = &cur
	c.upcoming = nil
	if ev.Upcoming != nil {
		up := *ev.Upcoming
		c.upcoming = &up
	}

	announcing := prev != nil && prev.Title != "" && prev.Title != cur.Title
	var gen uint64
	if announcing {
		c.announcing = true
		c.lockedAt = time.Now()
		c.waitGen++
		gen = c.waitGen
		if c.waitTimer != nil {
			c.waitTimer.Stop()
		}
		c.waitTimer = time.AfterFunc(c.announceTimeout, func() { c.onWaitExpired(gen) })
	}
	c.mu.Unlock()

	ctx, span := observe.StartSpan(context.Background(), "coordinator.transition")
	defer span.End()
	c.metrics.RecordTransition(ctx, source)

	if announcing {
		key := track.PairKey(prev.Title, cur.Title)
		span.SetAttributes(attribute.String("pair", key), attribute.String("source", source))
		c.metrics.LockEngaged.Add(ctx, 1)
		slog.Info("announcing transition", "pair", key, "source", source)

		req := announce.Request{
			PairKey:        key,
			PreviousTitle:  prev.Title,
			PreviousArtist: prev.Artist,
			NewTitle:       cur.Title,
			NewArtist:      cur.Artist,
		}
		if err := c.svc.Announce(ctx, req); err != nil {
			// The service never took the request, so no completion signal
			// will come. Resume right away rather than ride out the timeout.
			slog.Warn("coordinator: announce request failed, resuming", "pair", key, "err", err)
			c.finishAnnouncing(ctx, "error")
		}
	} else if lockHeld {
		// First track of the session: nothing to announce, release the lock
		// the trap just engaged.
		c.metrics.RecordLockDuration(ctx, 0, "immediate")
		c.bus.Publish(bus.Event{Kind: bus.KindResume, Reason: "nothing to announce"})
	}

	if ev.Upcoming != nil {
		c.schedulePrefetch(cur, ev.Upcoming)
	}
}

// onFinished handles a completion signal from the announcement service. A
// signal while idle is still acted on best-effort: if the last snapshot shows
// playback paused, a Resume is published so a lost or late signal cannot
// leave audio stopped.
func (c *Coordinator) onFinished(ctx context.Context) {
	c.mu.Lock()
	if c.announcing {
		c.mu.Unlock()
		c.finishAnnouncing(ctx, "completed")
		return
	}
	paused := c.current != nil && c.current.Paused
	c.mu.Unlock()

	if paused {
		slog.Debug("completion signal while idle, resuming paused playback")
		c.bus.Publish(bus.Event{Kind: bus.KindResume, Reason: "late completion with paused playback"})
	}
}

// onWaitExpired force-resumes a transition whose completion signal never
// arrived. gen guards against a timer firing for a transition that already
// completed.
func (c *Coordinator) onWaitExpired(gen uint64) {
	c.mu.Lock()
	stale := !c.announcing || gen != c.waitGen
	timeout := c.announceTimeout
	c.mu.Unlock()
	if stale {
		return
	}

	ctx := context.Background()
	slog.Warn("coordinator: no completion signal, force-resuming", "timeout", timeout)
	c.metrics.AnnounceTimeouts.Add(ctx, 1)
	c.finishAnnouncing(ctx, "timeout")
}

// finishAnnouncing transitions back to idle and publishes Resume. outcome
// labels the lock-duration sample.
func (c *Coordinator) finishAnnouncing(ctx context.Context, outcome string) {
	c.mu.Lock()
	if !c.announcing {
		c.mu.Unlock()
		return
	}
	c.announcing = false
	c.waitGen++
	if c.waitTimer != nil {
		c.waitTimer.Stop()
		c.waitTimer = nil
	}
	held := time.Since(c.lockedAt)
	c.mu.Unlock()

	c.metrics.RecordLockDuration(ctx, held.Seconds(), outcome)
	c.metrics.LockEngaged.Add(ctx, -1)
	slog.Info("transition finished", "outcome", outcome, "held", held)
	c.bus.Publish(bus.Event{Kind: bus.KindResume, Reason: "announcement " + outcome})
}

// schedulePrefetch arms the deferred prewarm for the cur→upcoming pair.
func (c *Coordinator) schedulePrefetch(cur track.Current, up *track.Upcoming) {
	if up == nil || up.Title == "" {
		return
	}
	c.sched.schedule(announce.Request{
		PairKey:        track.PairKey(cur.Title, up.Title),
		PreviousTitle:  cur.Title,
		PreviousArtist: cur.Artist,
		NewTitle:       up.Title,
		NewArtist:      up.Artist,
	})
}

// livePair reports the currently stored transition pair, for the scheduler's
// fire-time revalidation.
func (c *Coordinator) livePair() (from, to string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.upcoming == nil {
		return "", "", false
	}
	return c.current.Title, c.upcoming.Title, true
}
