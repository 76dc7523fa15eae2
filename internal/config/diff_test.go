package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/lectern/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.LogLevel = config.LogInfo
	cfg.Broadcast.SendTimeout = config.Duration(5 * time.Second)

	d := config.Diff(cfg, cfg)
	if d.HasChanges() {
		t.Fatalf("identical configs produced diff %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	old := &config.Config{}
	old.Server.LogLevel = config.LogInfo
	updated := &config.Config{}
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
	if d.BroadcastChanged {
		t.Error("BroadcastChanged = true, want false")
	}
}

func TestDiff_Broadcast(t *testing.T) {
	t.Parallel()

	old := &config.Config{}
	old.Broadcast.SendTimeout = config.Duration(5 * time.Second)
	updated := &config.Config{}
	updated.Broadcast.SendTimeout = config.Duration(2 * time.Second)
	updated.Broadcast.HeartbeatInterval = config.Duration(15 * time.Second)

	d := config.Diff(old, updated)
	if !d.BroadcastChanged {
		t.Fatal("BroadcastChanged = false, want true")
	}
	if got := d.NewBroadcast.SendTimeout.Std(); got != 2*time.Second {
		t.Errorf("NewBroadcast.SendTimeout = %s, want 2s", got)
	}
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true, want false")
	}
}
