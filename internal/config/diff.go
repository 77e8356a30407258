package config

// ConfigDiff describes what changed between two configs. Only fields that can
// be applied without a restart are tracked individually; everything else sets
// RequiresRestart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// TimingChanged covers the coordinator's hot-reloadable knobs.
	TimingChanged      bool
	NewAnnounceTimeout Duration
	NewPrefetchDelay   Duration

	// RequiresRestart is set when the host source, endpoints, or server
	// settings changed; these are wired at startup and cannot be swapped live.
	RequiresRestart bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Announcer.AnnounceTimeout != new.Announcer.AnnounceTimeout ||
		old.Announcer.PrefetchDelay != new.Announcer.PrefetchDelay {
		d.TimingChanged = true
		d.NewAnnounceTimeout = new.Announcer.AnnounceTimeout
		d.NewPrefetchDelay = new.Announcer.PrefetchDelay
	}

	if old.Host != new.Host ||
		old.Announcer.URL != new.Announcer.URL ||
		old.Announcer.Token != new.Announcer.Token ||
		old.Announcer.Breaker != new.Announcer.Breaker ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!sameTLS(old.Server.TLS, new.Server.TLS) {
		d.RequiresRestart = true
	}

	return d
}

func sameTLS(old, new *TLSConfig) bool {
	if old == nil || new == nil {
		return old == new
	}
	return *old == *new
}
