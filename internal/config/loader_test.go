package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/speaksmart/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "log level", yaml: "server:\n  log_level: verbose\n", want: "server.log_level"},
		{name: "log format", yaml: "server:\n  log_format: xml\n", want: "server.log_format"},
		{name: "negative operator", yaml: "discord:\n  operator_id: -5\n", want: "discord.operator_id"},
		{name: "storage driver", yaml: "storage:\n  driver: mysql\n", want: "storage.driver"},
		{name: "postgres needs dsn", yaml: "storage:\n  driver: postgres\n", want: "storage.dsn is required"},
		{name: "session backend", yaml: "sessions:\n  backend: memcached\n", want: "sessions.backend"},
		{name: "redis needs addr", yaml: "sessions:\n  backend: redis\n", want: "sessions.redis_addr is required"},
		{name: "negative ttl", yaml: "sessions:\n  ttl: -1s\n", want: "sessions.ttl"},
		{name: "breaker", yaml: "providers:\n  stt_breaker:\n    max_failures: -1\n", want: "max_failures"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error should mention %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
storage:
  driver: mysql
sessions:
  backend: memcached
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "storage.driver", "sessions.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_MemoryStorageIsValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("storage:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.DSN != "" {
		t.Errorf("memory driver should not get a DSN, got %q", cfg.Storage.DSN)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"stt", "tts"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("no known provider names for %q", kind)
		}
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "speaksmart.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.TTS.Name != "elevenlabs" {
		t.Errorf("providers.tts.name: got %q", cfg.Providers.TTS.Name)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "SPEAKSMART_TEST_FROM_FILE=file-value\nSPEAKSMART_TEST_PRESET=file-loses\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPEAKSMART_TEST_PRESET", "env-wins")
	t.Setenv("SPEAKSMART_TEST_FROM_FILE", "")
	os.Unsetenv("SPEAKSMART_TEST_FROM_FILE")

	if err := config.LoadEnv(envFile, false); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("SPEAKSMART_TEST_FROM_FILE"); got != "file-value" {
		t.Errorf("SPEAKSMART_TEST_FROM_FILE = %q", got)
	}
	if got := os.Getenv("SPEAKSMART_TEST_PRESET"); got != "env-wins" {
		t.Errorf("SPEAKSMART_TEST_PRESET = %q, existing env should win", got)
	}

	missing := filepath.Join(dir, "nope.env")
	if err := config.LoadEnv(missing, true); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := config.LoadEnv(missing, false); err == nil {
		t.Error("required missing file: expected error")
	}
	if err := config.LoadEnv("", false); err != nil {
		t.Errorf("empty path: %v", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("SPEAKSMART_OPERATOR_ID", "42")
	t.Setenv("ELEVENLABS_API_KEY", "el")

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Discord.OperatorID != 42 || cfg.Discord.Token != "token" {
		t.Errorf("discord: got %+v", cfg.Discord)
	}
	for kind, name := range map[string]string{"stt": cfg.Providers.STT.Name, "tts": cfg.Providers.TTS.Name} {
		known := false
		for _, n := range config.ValidProviderNames[kind] {
			known = known || n == name
		}
		if !known {
			t.Errorf("example %s provider %q is not a known name", kind, name)
		}
	}
}
