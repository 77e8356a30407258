package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/segue/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
host:
  source: bridge
  addr: "ws://127.0.0.1:8974/state"
  token: "shim-secret"
  poll_interval: 5s
announcer:
  url: "ws://127.0.0.1:8975/announce"
  announce_timeout: 30s
  prefetch_delay: 15s
  breaker:
    max_failures: 3
    reset_timeout: 1m
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host.Source != config.SourceBridge {
		t.Errorf("host.source = %q, want bridge", cfg.Host.Source)
	}
	if cfg.Host.PollInterval.Std() != 5*time.Second {
		t.Errorf("host.poll_interval = %v, want 5s", cfg.Host.PollInterval.Std())
	}
	if cfg.Announcer.AnnounceTimeout.Std() != 30*time.Second {
		t.Errorf("announcer.announce_timeout = %v, want 30s", cfg.Announcer.AnnounceTimeout.Std())
	}
	if cfg.Announcer.Breaker.ResetTimeout.Std() != time.Minute {
		t.Errorf("announcer.breaker.reset_timeout = %v, want 1m", cfg.Announcer.Breaker.ResetTimeout.Std())
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
host:
  source: mpd
  addr: "127.0.0.1:6600"
  volume: 11
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_MissingSource(t *testing.T) {
	t.Parallel()
	yaml := `
announcer:
  url: "ws://127.0.0.1:8975/announce"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing host.source, got nil")
	}
	if !strings.Contains(err.Error(), "host.source") {
		t.Errorf("error should mention host.source, got: %v", err)
	}
}

func TestValidate_InvalidSource(t *testing.T) {
	t.Parallel()
	yaml := `
host:
  source: spotify
  addr: "127.0.0.1:6600"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid host.source, got nil")
	}
	if !strings.Contains(err.Error(), "spotify") {
		t.Errorf("error should mention the invalid source, got: %v", err)
	}
}

func TestValidate_BridgeRequiresWebSocketAddr(t *testing.T) {
	t.Parallel()
	yaml := `
host:
  source: bridge
  addr: "127.0.0.1:8974"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for non-websocket bridge addr, got nil")
	}
	if !strings.Contains(err.Error(), "ws://") {
		t.Errorf("error should mention the ws:// scheme, got: %v", err)
	}
}

func TestValidate_InvalidAnnouncerURL(t *testing.T) {
	t.Parallel()
	yaml := `
host:
  source: mpd
  addr: "127.0.0.1:6600"
announcer:
  url: "http://127.0.0.1:8975/announce"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for http announcer url, got nil")
	}
}

func TestValidate_EmptyAnnouncerURLIsAllowed(t *testing.T) {
	t.Parallel()
	yaml := `
host:
  source: mpd
  addr: "127.0.0.1:6600"
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
host:
  source: spotify
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "host.source") {
		t.Errorf("error should mention host.source, got: %v", err)
	}
	if !strings.Contains(errStr, "host.addr") {
		t.Errorf("error should mention host.addr, got: %v", err)
	}
}

func TestValidate_PartialTLS(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: "/etc/segue/cert.pem"
host:
  source: mpd
  addr: "127.0.0.1:6600"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for tls without key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}
