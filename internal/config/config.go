// Package config loads qr-server settings from defaults, an optional TOML file,
// an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	GRPCAddr       string   `toml:"grpc_addr"` // empty disables the health sidecar
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout Duration `toml:"request_timeout"`
	HealthInterval Duration `toml:"health_interval"`
	Dev            bool     `toml:"dev"`
}

type DatabaseConfig struct {
	DSN            string `toml:"dsn"`
	MigrateOnStart bool   `toml:"migrate_on_start"`
}

type AuthConfig struct {
	JWTKey   string   `toml:"jwt_key"`
	Issuer   string   `toml:"issuer"`
	Audience string   `toml:"audience"`
	TokenTTL Duration `toml:"token_ttl"` // lifetime of tokens minted by `qr-server token`
}

// Duration is a time.Duration read from strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			GRPCAddr:       ":8081",
			RequestTimeout: Duration{15 * time.Second},
			HealthInterval: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			MigrateOnStart: true,
		},
		Auth: AuthConfig{
			TokenTTL: Duration{24 * time.Hour},
		},
	}
}

// Load builds the configuration. path may be empty, in which case QR_CONFIG is
// consulted; a missing file is not an error. envFile names an optional dotenv
// file whose values never override variables already set in the process.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
	}

	if path == "" {
		path = os.Getenv("QR_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("QR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := os.LookupEnv("QR_GRPC_ADDR"); ok {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("QR_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("QR_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QR_REQUEST_TIMEOUT: %w", err)
		}
		cfg.Server.RequestTimeout = Duration{d}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QR_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QR_JWT_KEY"); v != "" {
		cfg.Auth.JWTKey = v
	}
	if v := os.Getenv("QR_JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("QR_JWT_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if c.Database.DSN == "" {
		problems = append(problems, "database dsn is required (QR_DSN)")
	}
	if c.Auth.JWTKey == "" {
		problems = append(problems, "jwt signing key is required (QR_JWT_KEY)")
	}
	if c.Server.Addr == "" {
		problems = append(problems, "listen address is required (QR_ADDR)")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ClientDir is where the qr CLI keeps its token and timer database.
func ClientDir() (string, error) {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "quotereality"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quotereality"), nil
}

// EnsureClientDir creates ClientDir with owner-only permissions.
func EnsureClientDir() (string, error) {
	dir, err := ClientDir()
	if err != nil {
		return "", err
	}
	return dir, os.MkdirAll(dir, 0o700)
}
