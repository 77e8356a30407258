package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Host source
	if cfg.Host.Source == "" {
		errs = append(errs, errors.New("host.source is required; valid values: bridge, mpd"))
	} else if !cfg.Host.Source.IsValid() {
		errs = append(errs, fmt.Errorf("host.source %q is invalid; valid values: bridge, mpd", cfg.Host.Source))
	}
	if cfg.Host.Addr == "" {
		errs = append(errs, errors.New("host.addr is required"))
	}
	if cfg.Host.Source == SourceBridge && cfg.Host.Addr != "" && !hasWebSocketScheme(cfg.Host.Addr) {
		errs = append(errs, fmt.Errorf("host.addr %q must be a ws:// or wss:// URL for the bridge source", cfg.Host.Addr))
	}
	if cfg.Host.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("host.poll_interval %s must not be negative", cfg.Host.PollInterval.Std()))
	}

	// Announcer
	if cfg.Announcer.URL == "" {
		slog.Warn("announcer.url is empty; transitions will be silent pauses only")
	} else if !hasWebSocketScheme(cfg.Announcer.URL) {
		errs = append(errs, fmt.Errorf("announcer.url %q must be a ws:// or wss:// URL", cfg.Announcer.URL))
	}
	if cfg.Announcer.AnnounceTimeout < 0 {
		errs = append(errs, fmt.Errorf("announcer.announce_timeout %s must not be negative", cfg.Announcer.AnnounceTimeout.Std()))
	}
	if cfg.Announcer.PrefetchDelay < 0 {
		errs = append(errs, fmt.Errorf("announcer.prefetch_delay %s must not be negative", cfg.Announcer.PrefetchDelay.Std()))
	}
	if cfg.Announcer.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("announcer.breaker.max_failures %d must not be negative", cfg.Announcer.Breaker.MaxFailures))
	}
	if cfg.Announcer.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("announcer.breaker.reset_timeout %s must not be negative", cfg.Announcer.Breaker.ResetTimeout.Std()))
	}

	return errors.Join(errs...)
}

func hasWebSocketScheme(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}
