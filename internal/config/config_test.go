package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvRedisAddr, "")

	path := writeConfig(t, `
server:
  addr: ":9000"
jwt:
  secret: "file-secret"
pin:
  length: 8
ledger:
  reservation_timeout: 2m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected addr :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Pin.Length != 8 {
		t.Fatalf("expected pin length 8, got %d", cfg.Pin.Length)
	}
	if cfg.Pin.MaxAttempts != 10 {
		t.Fatalf("expected default max attempts 10, got %d", cfg.Pin.MaxAttempts)
	}
	if cfg.Ledger.ReservationTimeout != 2*time.Minute {
		t.Fatalf("expected reservation timeout 2m, got %s", cfg.Ledger.ReservationTimeout)
	}
	if cfg.Database.DSN != "file:data/giftpin.db" {
		t.Fatalf("expected default dsn, got %s", cfg.Database.DSN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://gifts@localhost/gifts")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvRedisAddr, "localhost:6379")

	path := writeConfig(t, "jwt:\n  secret: file-secret\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("expected env secret, got %s", cfg.JWT.Secret)
	}
	if cfg.Database.DSN != "postgres://gifts@localhost/gifts" {
		t.Fatalf("expected env dsn, got %s", cfg.Database.DSN)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected env redis addr, got %s", cfg.Redis.Addr)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisAddr, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisAddr, "")

	_, err := Load(writeConfig(t, "server:\n  addr: \":9000\"\n"))
	if !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestValidateRejectsBadPinSettings(t *testing.T) {
	cfg := Default()
	cfg.JWT.Secret = "s"
	cfg.Pin.Length = 2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected short pin length to be rejected")
	}
	cfg.Pin.Length = 6
	cfg.Pin.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero attempts to be rejected")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %s", got)
	}
	t.Setenv(EnvConfigPath, "/etc/giftpin.yaml")
	if got := ResolveConfigPath(""); got != "/etc/giftpin.yaml" {
		t.Fatalf("expected env path, got %s", got)
	}
	if got := ResolveConfigPath(" ./local.yaml "); got != "./local.yaml" {
		t.Fatalf("expected flag path, got %s", got)
	}
}
