package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":       {"whisper"},
	"translate": {"baidu", "openai"},
}

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
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	if fb := cfg.Providers.TranslateFallback; fb != nil {
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.translate_fallback.name is required when the block is present"))
		} else {
			validateProviderName("translate", fb.Name)
		}
	}

	// Provider availability warnings
	if cfg.Providers.ASR.Name == "" {
		slog.Warn("no ASR provider configured; audio frames will produce no subtitles")
	}
	if cfg.Providers.Translate.Name == "" {
		slog.Warn("no translation provider configured; subtitles will carry source text only")
	}
	if cfg.Providers.SourceLang != "" && cfg.Providers.SourceLang == cfg.Providers.TargetLang {
		slog.Warn("source and target language are identical; translation is a no-op",
			"lang", cfg.Providers.SourceLang)
	}

	// Persistence
	if cfg.Postgres.DSN == "" {
		slog.Warn("postgres.dsn is empty; utterances and lectures will not be persisted")
	}

	// Broadcast
	if cfg.Broadcast.SendTimeout < 0 {
		errs = append(errs, fmt.Errorf("broadcast.send_timeout must not be negative, got %s", cfg.Broadcast.SendTimeout.Std()))
	}
	if cfg.Broadcast.HeartbeatInterval < 0 {
		errs = append(errs, fmt.Errorf("broadcast.heartbeat_interval must not be negative, got %s", cfg.Broadcast.HeartbeatInterval.Std()))
	}

	// Queue
	if cfg.Queue.Workers < 0 {
		errs = append(errs, fmt.Errorf("queue.workers must not be negative, got %d", cfg.Queue.Workers))
	}
	if cfg.Queue.Capacity < 0 {
		errs = append(errs, fmt.Errorf("queue.capacity must not be negative, got %d", cfg.Queue.Capacity))
	}
	if cfg.Queue.DrainGrace < 0 {
		errs = append(errs, fmt.Errorf("queue.drain_grace must not be negative, got %s", cfg.Queue.DrainGrace.Std()))
	}

	// Storage
	if cfg.Storage.ExportTTL < 0 {
		errs = append(errs, fmt.Errorf("storage.export_ttl must not be negative, got %s", cfg.Storage.ExportTTL.Std()))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
