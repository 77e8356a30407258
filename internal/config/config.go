// Package config provides the configuration schema, loader, file watcher, and
// host-source registry for the segue daemon.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the segue daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog returns the slog level corresponding to l. Unknown values map to
// [slog.LevelInfo].
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SourceKind selects the host state source implementation.
type SourceKind string

const (
	// SourceBridge reads player state from the in-page WebSocket shim.
	SourceBridge SourceKind = "bridge"

	// SourceMPD reads player state from a Music Player Daemon server.
	SourceMPD SourceKind = "mpd"
)

// IsValid reports whether s is a recognised source kind.
func (s SourceKind) IsValid() bool {
	return s == SourceBridge || s == SourceMPD
}

// Duration wraps time.Duration so config values can be written in the usual
// "30s" / "1m" notation.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for segue.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Host      HostConfig      `yaml:"host"`
	Announcer AnnouncerConfig `yaml:"announcer"`
}

// ServerConfig holds network and logging settings for the admin HTTP server
// (metrics, health probes).
type ServerConfig struct {
	// ListenAddr is the TCP address the admin server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the admin server. When nil, it runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// HostConfig describes where player state comes from and how playback is
// controlled.
type HostConfig struct {
	// Source selects the host implementation.
	Source SourceKind `yaml:"source"`

	// Addr is the source endpoint: a WebSocket URL for the bridge shim
	// (e.g., "ws://127.0.0.1:8974/state") or host:port for MPD
	// (e.g., "127.0.0.1:6600").
	Addr string `yaml:"addr"`

	// Token, when non-empty, is sent as a Bearer token when dialling the
	// bridge shim. Ignored for MPD.
	Token string `yaml:"token"`

	// PollInterval is how often the observer republishes an Update snapshot.
	// Defaults to 5s when zero.
	PollInterval Duration `yaml:"poll_interval"`
}

// AnnouncerConfig describes the external announcement service connection and
// the coordinator's timing knobs.
type AnnouncerConfig struct {
	// URL is the announcement service WebSocket endpoint. When empty, segue
	// runs with the silent backend only: transitions become a short pause.
	URL string `yaml:"url"`

	// Token, when non-empty, is sent as a Bearer token on the dial request.
	Token string `yaml:"token"`

	// AnnounceTimeout bounds the wait for a completion signal before playback
	// is force-resumed. Defaults to 30s when zero.
	AnnounceTimeout Duration `yaml:"announce_timeout"`

	// PrefetchDelay is how long a track pair must stay current before its
	// announcement is prewarmed. Defaults to 15s when zero.
	PrefetchDelay Duration `yaml:"prefetch_delay"`

	// Breaker tunes the circuit breaker guarding the service connection.
	Breaker BreakerSettings `yaml:"breaker"`
}

// BreakerSettings tunes the per-backend circuit breakers on the announcement
// chain. Zero values fall back to the resilience package defaults.
type BreakerSettings struct {
	// MaxFailures is the consecutive-failure count that opens the breaker.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing again.
	ResetTimeout Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the probe budget in the half-open state.
	HalfOpenMax int `yaml:"half_open_max"`
}
