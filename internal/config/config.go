package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// EnvDevelopment targets a locally running backend
	EnvDevelopment = "development"
	// EnvProduction targets the configured API origin
	EnvProduction = "production"

	// DefaultOrigin is used when no origin is configured for the environment
	DefaultOrigin = "http://127.0.0.1:8000"

	// FileName is the optional YAML profile file inside the profile directory
	FileName = "config.yaml"
)

// Config represents the console configuration structure
type Config struct {
	Environment string        `envconfig:"ENVIRONMENT" yaml:"environment"`
	DevAPIURL   string        `envconfig:"DEV_API_URL" yaml:"dev_api_url"`
	APIURL      string        `envconfig:"API_URL" yaml:"api_url"`
	ProfileDir  string        `envconfig:"PROFILE_DIR" yaml:"profile_dir"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" yaml:"http_timeout"`
	PageSize    int           `envconfig:"PAGE_SIZE" yaml:"page_size"`
	LogLevel    string        `envconfig:"LOG_LEVEL" yaml:"log_level"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	profileDir := ".negocio"
	if dir, err := os.UserConfigDir(); err == nil {
		profileDir = filepath.Join(dir, "negocio")
	}
	return &Config{
		Environment: EnvDevelopment,
		DevAPIURL:   DefaultOrigin,
		ProfileDir:  profileDir,
		HTTPTimeout: 15 * time.Second,
		PageSize:    10,
		LogLevel:    "info",
	}
}

// LoadFromEnv loads the configuration from defaults, the optional YAML profile
// file, an optional .env file and NEGOCIO_* environment variables, in that order
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load is LoadFromEnv with an explicit profile directory, which takes
// precedence over NEGOCIO_PROFILE_DIR when not empty
func Load(profileDir string) (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	// The profile directory decides where the YAML file lives, so resolve it first
	if dir := os.Getenv("NEGOCIO_PROFILE_DIR"); dir != "" {
		cfg.ProfileDir = dir
	}
	if profileDir != "" {
		cfg.ProfileDir = profileDir
	}
	if err := cfg.LoadFile(filepath.Join(cfg.ProfileDir, FileName)); err != nil {
		return nil, err
	}

	if err := envconfig.Process("negocio", cfg); err != nil {
		return nil, err
	}
	if profileDir != "" {
		cfg.ProfileDir = profileDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML profile file into the configuration; a missing file is not an error
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q (want %s or %s)", c.Environment, EnvDevelopment, EnvProduction)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.ProfileDir == "" {
		return errors.New("profile directory is required")
	}
	return nil
}

// IsEnvProduction returns whether the console targets the production backend
func (c *Config) IsEnvProduction() bool {
	return c.Environment == EnvProduction
}

// ResolveBaseOrigin returns the backend origin for the given environment
func (c *Config) ResolveBaseOrigin(environment string) string {
	origin := c.DevAPIURL
	if environment == EnvProduction {
		origin = c.APIURL
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return strings.TrimRight(origin, "/")
}
