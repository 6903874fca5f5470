// Package config loads cadence settings from a YAML file with environment
// overrides and watches the file for live changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ldi/cadence/internal/scoring"
)

const (
	DefaultDir      = ".cadence"
	DefaultFile     = "config.yaml"
	DefaultDBPath   = ".cadence/cadence.db"
	DefaultAddr     = ":8080"
	DefaultUser     = "local"
	DefaultTokenTTL = 30 * 24 * time.Hour
)

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn,omitempty"`
}

type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret,omitempty"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Export struct {
	// Path receives the decision log JSONL export. Empty disables auto export.
	Path string `yaml:"path,omitempty"`
	Auto bool   `yaml:"auto"`
}

type Config struct {
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
	Auth     Auth     `yaml:"auth"`
	Export   Export   `yaml:"export"`
	// Timezone names the reference location for calendar-day comparisons.
	Timezone string `yaml:"timezone"`
	// User is the local user for the CLI and MCP transports.
	User               string          `yaml:"user"`
	Scoring            scoring.Weights `yaml:"scoring"`
	ConfidenceGapScale float64         `yaml:"confidence_gap_scale"`
}

func Default() *Config {
	return &Config{
		Database: Database{Driver: "sqlite", Path: DefaultDBPath},
		Server:   Server{Addr: DefaultAddr, AllowedOrigins: []string{"*"}},
		Auth:     Auth{TokenTTL: DefaultTokenTTL},
		Timezone: "UTC",
		User:     DefaultUser,
		Scoring:  scoring.DefaultWeights(),

		ConfidenceGapScale: 2.0,
	}
}

// DefaultPath returns the config file location under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultDir, DefaultFile)
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Driver, "CADENCE_DB_DRIVER")
	set(&c.Database.Path, "CADENCE_DB_PATH")
	set(&c.Database.DSN, "CADENCE_DB_DSN")
	set(&c.Server.Addr, "CADENCE_ADDR")
	set(&c.Auth.JWTSecret, "CADENCE_JWT_SECRET")
	set(&c.Timezone, "CADENCE_TIMEZONE")
	set(&c.User, "CADENCE_USER")
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("user must not be empty")
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("invalid scoring weights: %w", err)
	}
	if c.ConfidenceGapScale <= 0 {
		return fmt.Errorf("confidence_gap_scale must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

// Location returns the reference timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DBSource is the path or DSN handed to the database driver.
func (c *Config) DBSource() string {
	if c.Database.Driver == "postgres" {
		return c.Database.DSN
	}
	return c.Database.Path
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
