package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// BroadcastChanged is true when the fan-out send timeout or the
	// heartbeat interval changed. The new values apply to connections
	// opened after the reload.
	BroadcastChanged bool
	NewBroadcast     BroadcastConfig
}

// HasChanges reports whether the diff carries anything to apply.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.BroadcastChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Broadcast != new.Broadcast {
		d.BroadcastChanged = true
		d.NewBroadcast = new.Broadcast
	}

	return d
}
