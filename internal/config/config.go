// Package config loads the YAML service configuration and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither a flag nor GIFTPIN_CONFIG names a file.
const DefaultConfigPath = "config.yaml"

// Environment variables consulted by Load.
const (
	EnvConfigPath  = "GIFTPIN_CONFIG"
	EnvDatabaseURL = "DATABASE_URL"
	EnvJWTSecret   = "GIFTPIN_JWT_SECRET"
	EnvRedisAddr   = "REDIS_ADDR"
)

// ErrMissingJWTSecret indicates no signing secret was configured.
var ErrMissingJWTSecret = errors.New("config: jwt secret is required")

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Pin      PinConfig      `yaml:"pin"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the database and pool sizing.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// JWTConfig signs shop and operator tokens.
type JWTConfig struct {
	Secret           string        `yaml:"secret"`
	ShopTokenTTL     time.Duration `yaml:"shop_token_ttl"`
	OperatorTokenTTL time.Duration `yaml:"operator_token_ttl"`
}

// PinConfig controls generated PINs.
type PinConfig struct {
	Length      int `yaml:"length"`
	MaxAttempts int `yaml:"max_attempts"`
}

// LedgerConfig controls reservation handles and the pending reservation reaper.
type LedgerConfig struct {
	NodeID             int64         `yaml:"node_id"`
	ReservationTimeout time.Duration `yaml:"reservation_timeout"`
	ReaperInterval     time.Duration `yaml:"reaper_interval"`
}

// RedisConfig enables verify throttling when Addr is set.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	VerifyLimit  int64         `yaml:"verify_limit"`
	VerifyWindow time.Duration `yaml:"verify_window"`
}

// StorageConfig enables the object storage collaborator when Endpoint is set.
type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	Bucket         string        `yaml:"bucket"`
	Secure         bool          `yaml:"secure"`
	PresignTTL     time.Duration `yaml:"presign_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{DSN: "file:data/giftpin.db"},
		JWT: JWTConfig{
			ShopTokenTTL:     30 * 24 * time.Hour,
			OperatorTokenTTL: 12 * time.Hour,
		},
		Pin: PinConfig{Length: 6, MaxAttempts: 10},
		Ledger: LedgerConfig{
			NodeID:             1,
			ReservationTimeout: 10 * time.Minute,
			ReaperInterval:     time.Minute,
		},
		Redis: RedisConfig{
			VerifyLimit:  30,
			VerifyWindow: time.Minute,
		},
		Storage: StorageConfig{
			Bucket:         "giftpin",
			PresignTTL:     15 * time.Minute,
			MaxUploadBytes: 64 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// ResolveConfigPath picks the flag value, then GIFTPIN_CONFIG, then the default path.
func ResolveConfigPath(flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads the YAML file at path over the defaults and applies environment overrides.
// A missing file is not an error; the defaults and environment are used instead.
func Load(path string) (Config, error) {
	cfg := Default()

	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(&cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTPIN_LEDGER_NODE_ID")); v != "" {
		if parsed, errParse := strconv.ParseInt(v, 10, 64); errParse == nil {
			cfg.Ledger.NodeID = parsed
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database dsn is required")
	}
	if c.Pin.Length < 4 || c.Pin.Length > 32 {
		return fmt.Errorf("config: pin length must be between 4 and 32, got %d", c.Pin.Length)
	}
	if c.Pin.MaxAttempts <= 0 {
		return fmt.Errorf("config: pin max_attempts must be positive, got %d", c.Pin.MaxAttempts)
	}
	if c.Ledger.NodeID < 0 || c.Ledger.NodeID > 1023 {
		return fmt.Errorf("config: ledger node_id must be between 0 and 1023, got %d", c.Ledger.NodeID)
	}
	if c.Storage.Endpoint != "" && strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("config: storage bucket is required when endpoint is set")
	}
	return nil
}
