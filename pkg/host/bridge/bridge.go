// Package bridge implements a host.Source and host.Controller backed by a
// WebSocket connection to a thin shim running inside the player page.
//
// The shim pushes JSON snapshots of the player's internal state as the page
// mutates it; the bridge keeps only the most recent snapshot and serves it
// from memory. Play and pause commands travel back over the same connection.
// The connection is re-established with capped exponential backoff when it
// drops, so a page reload does not take the daemon down with it.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/segue/pkg/host"
)

// Compile-time assertions that Bridge satisfies the host interfaces.
var _ host.Source = (*Bridge)(nil)
var _ host.Controller = (*Bridge)(nil)

// Default reconnection parameters.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Config configures a [Bridge].
type Config struct {
	// URL is the WebSocket endpoint of the in-page shim,
	// e.g. "ws://127.0.0.1:8974/state".
	URL string

	// Token, when non-empty, is sent as a Bearer token on the dial request.
	Token string

	// Backoff is the initial reconnect delay. Doubles per attempt up to
	// MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the reconnect delay. Defaults to 30s if zero.
	MaxBackoff time.Duration
}

// Bridge maintains the shim connection and the latest state snapshot.
// All methods are safe for concurrent use.
type Bridge struct {
	url        string
	token      string
	backoff    time.Duration
	maxBackoff time.Duration

	mu   sync.Mutex
	tree host.Tree
	conn *websocket.Conn
}

// New creates a [Bridge]. The connection is not established until [Bridge.Run]
// is called.
func New(cfg Config) *Bridge {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Bridge{
		url:        cfg.URL,
		token:      cfg.Token,
		backoff:    backoff,
		maxBackoff: maxBackoff,
	}
}

// ── Wire messages ─────────────────────────────────────────────────────────────

// shimMessage is the envelope for every frame received from the shim.
type shimMessage struct {
	Type  string    `json:"type"`
	State host.Tree `json:"state,omitempty"`
}

// commandMessage is sent to the shim to drive the real media element.
type commandMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ── Source ────────────────────────────────────────────────────────────────────

// Snapshot returns the most recent state tree pushed by the shim, or
// (nil, false) when no snapshot has arrived yet.
func (b *Bridge) Snapshot() (host.Tree, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tree == nil {
		return nil, false
	}
	return b.tree, true
}

// ── Controller ────────────────────────────────────────────────────────────────

// Play asks the shim to start real playback on the active media element.
func (b *Bridge) Play(ctx context.Context) error {
	return b.sendCommand(ctx, "play")
}

// Pause asks the shim to pause the active media element.
func (b *Bridge) Pause(ctx context.Context) error {
	return b.sendCommand(ctx, "pause")
}

func (b *Bridge) sendCommand(ctx context.Context, command string) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("bridge: %s: shim not connected", command)
	}

	data, err := json.Marshal(commandMessage{Type: "command", Command: command})
	if err != nil {
		return fmt.Errorf("bridge: marshal %s: %w", command, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("bridge: send %s: %w", command, err)
	}
	return nil
}

// ── Connection lifecycle ──────────────────────────────────────────────────────

// Run connects to the shim and processes incoming snapshots until ctx is
// cancelled. Dropped connections are retried with exponential backoff; Run
// only returns on context cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	delay := b.backoff
	for {
		err := b.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("bridge connection lost, reconnecting", "url", b.url, "err", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.maxBackoff {
			delay = b.maxBackoff
		}
	}
}

// runOnce dials the shim and reads frames until the connection fails.
func (b *Bridge) runOnce(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if b.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + b.token}}
	}
	conn, _, err := websocket.Dial(ctx, b.url, opts)
	if err != nil {
		return fmt.Errorf("bridge: dial %s: %w", b.url, err)
	}
	// State snapshots can exceed the library's 32 KiB default on long queues.
	conn.SetReadLimit(4 << 20)

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	slog.Info("bridge connected", "url", b.url)

	defer func() {
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "done")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("bridge: read: %w", err)
		}
		var msg shimMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("bridge: dropping malformed frame", "err", err)
			continue
		}
		if msg.Type != "state" || msg.State == nil {
			continue
		}
		b.mu.Lock()
		b.tree = msg.State
		b.mu.Unlock()
	}
}
