package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/segue/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Host: config.HostConfig{
			Source:       config.SourceBridge,
			Addr:         "ws://127.0.0.1:8974/state",
			PollInterval: config.Duration(5 * time.Second),
		},
		Announcer: config.AnnouncerConfig{
			URL:             "ws://127.0.0.1:8975/announce",
			AnnounceTimeout: config.Duration(30 * time.Second),
			PrefetchDelay:   config.Duration(15 * time.Second),
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.TimingChanged {
		t.Error("expected TimingChanged=false for identical configs")
	}
	if d.RequiresRestart {
		t.Error("expected RequiresRestart=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.RequiresRestart {
		t.Error("log level change should not require restart")
	}
}

func TestDiff_TimingChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Announcer.AnnounceTimeout = config.Duration(time.Minute)
	new.Announcer.PrefetchDelay = config.Duration(20 * time.Second)

	d := config.Diff(old, new)
	if !d.TimingChanged {
		t.Error("expected TimingChanged=true")
	}
	if d.NewAnnounceTimeout.Std() != time.Minute {
		t.Errorf("NewAnnounceTimeout = %v, want 1m", d.NewAnnounceTimeout.Std())
	}
	if d.NewPrefetchDelay.Std() != 20*time.Second {
		t.Errorf("NewPrefetchDelay = %v, want 20s", d.NewPrefetchDelay.Std())
	}
	if d.RequiresRestart {
		t.Error("timing change should not require restart")
	}
}

func TestDiff_HostChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Host.Source = config.SourceMPD
	new.Host.Addr = "127.0.0.1:6600"

	d := config.Diff(old, new)
	if !d.RequiresRestart {
		t.Error("expected RequiresRestart=true for a host source change")
	}
}

func TestDiff_AnnouncerURLChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Announcer.URL = "ws://other:9000/announce"

	d := config.Diff(old, new)
	if !d.RequiresRestart {
		t.Error("expected RequiresRestart=true for an announcer endpoint change")
	}
	if d.TimingChanged {
		t.Error("endpoint change alone should not flag TimingChanged")
	}
}

func TestDiff_TLSChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.TLS = &config.TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"}

	d := config.Diff(old, new)
	if !d.RequiresRestart {
		t.Error("expected RequiresRestart=true when TLS is enabled")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogWarn
	new.Announcer.PrefetchDelay = config.Duration(time.Minute)
	new.Host.Addr = "ws://127.0.0.1:9999/state"

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.TimingChanged {
		t.Error("expected TimingChanged=true")
	}
	if !d.RequiresRestart {
		t.Error("expected RequiresRestart=true")
	}
}
