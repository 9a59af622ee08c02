package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "deepgram", "openai", "gcp", "disabled"},
	"tts": {"elevenlabs", "coqui"},
}

// envRef matches ${VAR} references.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set win. A missing file is an
// error unless optional is true.
func LoadEnv(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader expands ${VAR} references, decodes the YAML from r,
// applies defaults and validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	raw = expandEnv(raw)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces ${VAR} with the variable's value; unset variables
// become empty.
func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	if cfg.Discord.OperatorID < 0 {
		errs = append(errs, fmt.Errorf("discord.operator_id %d must not be negative", cfg.Discord.OperatorID))
	}
	if cfg.Discord.OperatorID == 0 {
		slog.Warn("discord.operator_id is not set; support escalation will fail")
	}

	switch {
	case cfg.Storage.Driver != "" && !cfg.Storage.Driver.IsValid():
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: postgres, sqlite, memory", cfg.Storage.Driver))
	case cfg.Storage.Driver == StoragePostgres && cfg.Storage.DSN == "":
		errs = append(errs, errors.New("storage.dsn is required when driver is postgres"))
	case cfg.Storage.Driver == StorageMemory:
		slog.Warn("storage.driver is memory; tickets and the message log are lost on restart")
	}

	switch {
	case cfg.Sessions.Backend != "" && !cfg.Sessions.Backend.IsValid():
		errs = append(errs, fmt.Errorf("sessions.backend %q is invalid; valid values: memory, redis", cfg.Sessions.Backend))
	case cfg.Sessions.Backend == SessionsRedis && cfg.Sessions.RedisAddr == "":
		errs = append(errs, errors.New("sessions.redis_addr is required when backend is redis"))
	}
	if cfg.Sessions.TTL < 0 {
		errs = append(errs, fmt.Errorf("sessions.ttl %s must not be negative", cfg.Sessions.TTL))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; practice answers cannot be transcribed")
	}
	if cfg.Providers.STTBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.stt_breaker.max_failures %d must not be negative", cfg.Providers.STTBreaker.MaxFailures))
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
