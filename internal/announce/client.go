package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

var _ Service = (*Client)(nil)

// Default reconnection parameters.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ClientConfig configures a [Client].
type ClientConfig struct {
	// URL is the announcement service WebSocket endpoint.
	URL string

	// Token, when non-empty, is sent as a Bearer token on the dial request.
	Token string

	// Backoff is the initial reconnect delay, doubling per attempt up to
	// MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the reconnect delay. Defaults to 30s if zero.
	MaxBackoff time.Duration
}

// Client talks the JSON message protocol to the announcement service over a
// WebSocket connection. All methods are safe for concurrent use.
type Client struct {
	url        string
	token      string
	backoff    time.Duration
	maxBackoff time.Duration

	finished chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a [Client]. The connection is established by [Client.Run].
func NewClient(cfg ClientConfig) *Client {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		finished:   make(chan struct{}, 4),
	}
}

// wireMessage is the envelope for every frame in both directions.
type wireMessage struct {
	Type           string `json:"type"`
	PairKey        string `json:"pairKey,omitempty"`
	PreviousTitle  string `json:"previousTitle,omitempty"`
	PreviousArtist string `json:"previousArtist,omitempty"`
	NewTitle       string `json:"newTitle,omitempty"`
	NewArtist      string `json:"newArtist,omitempty"`
	TimeOfDay      string `json:"localTimeOfDay,omitempty"`
}

// Announce implements [Service].
func (c *Client) Announce(ctx context.Context, req Request) error {
	return c.send(ctx, TypeAnnounceNow, req)
}

// Prewarm implements [Service].
func (c *Client) Prewarm(ctx context.Context, req Request) error {
	return c.send(ctx, TypePrewarm, req)
}

// Finished implements [Service].
func (c *Client) Finished() <-chan struct{} { return c.finished }

// Connected reports whether the service connection is currently up.
// Used by the readiness probe.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) send(ctx context.Context, msgType string, req Request) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("announce: %s %q: service not connected", msgType, req.PairKey)
	}

	data, err := json.Marshal(wireMessage{
		Type:           msgType,
		PairKey:        req.PairKey,
		PreviousTitle:  req.PreviousTitle,
		PreviousArtist: req.PreviousArtist,
		NewTitle:       req.NewTitle,
		NewArtist:      req.NewArtist,
		TimeOfDay:      req.TimeOfDay,
	})
	if err != nil {
		return fmt.Errorf("announce: marshal %s: %w", msgType, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("announce: send %s %q: %w", msgType, req.PairKey, err)
	}
	return nil
}

// Run maintains the service connection and forwards completion signals until
// ctx is cancelled. Dropped connections are retried with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := c.backoff
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("announcement service connection lost, reconnecting",
			"url", c.url, "err", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.maxBackoff {
			delay = c.maxBackoff
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}
	conn, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		return fmt.Errorf("announce: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	slog.Info("announcement service connected", "url", c.url)

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "done")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("announce: read: %w", err)
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("announce: dropping malformed frame", "err", err)
			continue
		}
		if msg.Type != TypeAnnounceFinished {
			continue
		}
		select {
		case c.finished <- struct{}{}:
		default:
			// Nobody is waiting and the buffer is full; a stale completion
			// signal carries no information worth blocking for.
		}
	}
}
