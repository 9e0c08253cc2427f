package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Engine.MaxBetsPerEvent = 0
	cfg.Server.Port = 99_999

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "max_bets_per_event", "port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "dev"

[engine]
signup_grant_cents = 250000
turn_timer = "45s"

[server]
port = 9999
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STAKEHOUSE_SERVER_PORT", "7070")
	t.Setenv("STAKEHOUSE_ENGINE_MAX_BETS_PER_EVENT", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("mode = %q, want dev", cfg.Mode)
	}
	if cfg.Engine.SignupGrantCents != 250_000 {
		t.Errorf("signup grant = %d, want 250000", cfg.Engine.SignupGrantCents)
	}
	if cfg.Engine.TurnTimer.Duration != 45*time.Second {
		t.Errorf("turn timer = %v, want 45s", cfg.Engine.TurnTimer.Duration)
	}
	// Env beats file; file beats default.
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Engine.MaxBetsPerEvent != 5 {
		t.Errorf("max bets = %d, want env override 5", cfg.Engine.MaxBetsPerEvent)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" || red.Notify.TelegramToken != "***" {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Fatal("redaction mutated the original config")
	}
}
