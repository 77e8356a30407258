package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/segue/internal/announce"
)

// ErrAllFailed is returned when every backend in a [Chain] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("resilience: all announcement backends failed")

// chainEntry pairs an announcement backend with its dedicated breaker.
type chainEntry struct {
	name    string
	svc     announce.Service
	breaker *Breaker
}

// Chain implements [announce.Service] with failover across multiple backends,
// each guarded by its own circuit breaker. Backends are tried in registration
// order; completion signals from all of them are merged onto one channel.
//
// Register [announce.Silent] last so a transition degrades to a short pause
// instead of a stuck playback lock when every real backend is down.
type Chain struct {
	cfg      BreakerConfig
	finished chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	entries []chainEntry
	closed  bool
}

var _ announce.Service = (*Chain)(nil)

// NewChain creates an empty [Chain]. cfg configures the per-backend breakers;
// the Name field is overwritten per backend.
func NewChain(cfg BreakerConfig) *Chain {
	return &Chain{
		cfg:      cfg,
		finished: make(chan struct{}, 4),
		done:     make(chan struct{}),
	}
}

// Add registers a backend at the end of the chain and starts forwarding its
// completion signals.
func (c *Chain) Add(name string, svc announce.Service) {
	cfg := c.cfg
	cfg.Name = name

	c.mu.Lock()
	c.entries = append(c.entries, chainEntry{
		name:    name,
		svc:     svc,
		breaker: NewBreaker(cfg),
	})
	c.mu.Unlock()

	go c.forward(svc.Finished())
}

// forward merges one backend's completion signals onto the chain channel
// until the chain is closed.
func (c *Chain) forward(ch <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-ch:
			select {
			case c.finished <- struct{}{}:
			default:
			}
		}
	}
}

// Announce implements [announce.Service]: the request goes to the first
// backend whose breaker lets it through and which accepts it.
func (c *Chain) Announce(ctx context.Context, req announce.Request) error {
	return c.execute("announce", func(svc announce.Service) error {
		return svc.Announce(ctx, req)
	})
}

// Prewarm implements [announce.Service].
func (c *Chain) Prewarm(ctx context.Context, req announce.Request) error {
	return c.execute("prewarm", func(svc announce.Service) error {
		return svc.Prewarm(ctx, req)
	})
}

// Finished implements [announce.Service], returning the merged completion
// channel.
func (c *Chain) Finished() <-chan struct{} { return c.finished }

// execute tries fn against each backend in order until one succeeds.
// Breaker-open backends are skipped.
func (c *Chain) execute(op string, fn func(announce.Service) error) error {
	c.mu.Lock()
	entries := make([]chainEntry, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	var lastErr error
	for _, entry := range entries {
		err := entry.breaker.Execute(func() error { return fn(entry.svc) })
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping announcement backend, circuit open",
				"backend", entry.name, "op", op)
		} else {
			slog.Warn("announcement backend failed, trying next",
				"backend", entry.name, "op", op, "err", err)
		}
	}
	return fmt.Errorf("resilience: %s: %w: %v", op, ErrAllFailed, lastErr)
}

// Close stops the completion-signal forwarders. The chain must not be used
// after Close.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}
