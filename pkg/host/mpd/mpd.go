// Package mpd implements a host.Source and host.Controller backed by a Music
// Player Daemon server.
//
// MPD exposes clean key/value attributes rather than the page-internal tree
// the observer expects, so this package synthesises the same tree shape from
// status, current-song, and playlist data. A background loop refreshes the
// snapshot on a fixed interval; Snapshot never touches the network.
package mpd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	gompd "github.com/fhs/gompd/v2/mpd"

	"github.com/MrWong99/segue/pkg/host"
)

var _ host.Source = (*Source)(nil)
var _ host.Controller = (*Source)(nil)

const (
	defaultRefresh   = 1 * time.Second
	keepAliveEvery   = 30 * time.Second
	reconnectBackoff = 5 * time.Second
)

// Config configures a [Source].
type Config struct {
	// Addr is the MPD server address, e.g. "127.0.0.1:6600".
	Addr string

	// Refresh is the snapshot refresh interval. Defaults to 1s if zero.
	Refresh time.Duration
}

// Source polls an MPD server and serves host state snapshots from memory.
// All methods are safe for concurrent use.
type Source struct {
	addr    string
	refresh time.Duration

	mu     sync.Mutex
	client *gompd.Client
	tree   host.Tree
}

// New creates a [Source]. No connection is made until [Source.Run] is called.
func New(cfg Config) *Source {
	refresh := cfg.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return &Source{addr: cfg.Addr, refresh: refresh}
}

// Snapshot returns the most recently refreshed state tree.
func (s *Source) Snapshot() (host.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, false
	}
	return s.tree, true
}

// Play resumes MPD playback.
func (s *Source) Play(context.Context) error {
	return s.withClient(func(c *gompd.Client) error { return c.Pause(false) })
}

// Pause halts MPD playback.
func (s *Source) Pause(context.Context) error {
	return s.withClient(func(c *gompd.Client) error { return c.Pause(true) })
}

func (s *Source) withClient(fn func(*gompd.Client) error) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return fmt.Errorf("mpd: not connected to %s", s.addr)
	}
	return fn(c)
}

// Run connects to MPD and refreshes the snapshot until ctx is cancelled.
// Connection failures are retried; Run only returns on cancellation.
func (s *Source) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("mpd connection lost, reconnecting", "addr", s.addr, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (s *Source) runOnce(ctx context.Context) error {
	client, err := gompd.Dial("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mpd: dial %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	slog.Info("mpd connected", "addr", s.addr)

	defer func() {
		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()
		client.Close()
	}()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-keepAlive.C:
			// Ping so the MPD connection does not idle out.
			if err := client.Ping(); err != nil {
				return fmt.Errorf("mpd: ping: %w", err)
			}
		case <-ticker.C:
			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("mpd: status: %w", err)
			}
			song, err := client.CurrentSong()
			if err != nil {
				return fmt.Errorf("mpd: current song: %w", err)
			}
			playlist, err := client.PlaylistInfo(-1, -1)
			if err != nil {
				return fmt.Errorf("mpd: playlist: %w", err)
			}
			tree := buildTree(status, song, playlist)
			s.mu.Lock()
			s.tree = tree
			s.mu.Unlock()
		}
	}
}

// buildTree maps MPD attributes onto the host state tree shape the observer
// reads. The current playlist entry carries the "selected" flag.
func buildTree(status, song gompd.Attrs, playlist []gompd.Attrs) host.Tree {
	items := make([]any, 0, len(playlist))
	currentPos := status["song"]
	for _, entry := range playlist {
		record := map[string]any{
			"title":    entry["Title"],
			"artist":   entry["Artist"],
			"selected": currentPos != "" && entry["Pos"] == currentPos,
		}
		items = append(items, map[string]any{"queueItem": record})
	}

	tree := host.Tree{
		"nowPlaying": map[string]any{
			"title":  song["Title"],
			"artist": song["Artist"],
			"album":  song["Album"],
		},
		"player": map[string]any{
			"status":   float64(statusCode(status["state"])),
			"position": parseSeconds(status["elapsed"]),
			"duration": parseSeconds(status["duration"]),
		},
		"queue": map[string]any{
			"items": items,
		},
	}
	if song["Artist"] != "" || song["Album"] != "" {
		tree["byline"] = song["Artist"] + " • " + song["Album"]
	}
	return tree
}

// statusCode translates MPD's textual state into the host status enumeration.
func statusCode(state string) host.Status {
	switch state {
	case "play":
		return host.StatusPlaying
	case "pause":
		return host.StatusPaused
	case "stop":
		return host.StatusEnded
	default:
		return host.StatusUnstarted
	}
}

func parseSeconds(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
