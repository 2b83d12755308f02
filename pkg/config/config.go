// Package config loads the server configuration from YAML with
// environment overrides for values that should not live in files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. The internal secret in particular should be
// injected through the environment, not committed to a config file.
const (
	EnvInternalSecret = "MOCKNEST_INTERNAL_SECRET"
	EnvListenAddr     = "MOCKNEST_LISTEN_ADDR"
	EnvBaseDomain     = "MOCKNEST_BASE_DOMAIN"
	EnvDataDir        = "MOCKNEST_DATA_DIR"
	EnvLogLevel       = "MOCKNEST_LOG_LEVEL"
)

// Defaults.
const (
	DefaultListenAddr = ":8080"
	DefaultDataDir    = "./data"
	DefaultIdleTTL    = 5 * time.Minute
)

// Config is the full server configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listenAddr"`

	// BaseDomain maps subdomains to tenants: a Host of
	// acme.<baseDomain> routes to tenant "acme". When empty, only the
	// /m/{tenant}/ path prefix routes traffic.
	BaseDomain string `yaml:"baseDomain"`

	// DataDir holds one SQLite file per tenant.
	DataDir string `yaml:"dataDir"`

	// InternalSecret gates the per-tenant /__internal/ surface.
	InternalSecret string `yaml:"internalSecret"`

	// ActorIdleTTL evicts actors without traffic.
	ActorIdleTTL time.Duration `yaml:"actorIdleTTL"`

	// HubKeepAlive evicts viewers silent past this window.
	HubKeepAlive time.Duration `yaml:"hubKeepAlive"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the baseline configuration before file and environment
// layers apply.
func Default() Config {
	return Config{
		ListenAddr:   DefaultListenAddr,
		DataDir:      DefaultDataDir,
		ActorIdleTTL: DefaultIdleTTL,
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path, layers environment overrides on top,
// and validates the result. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment values onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvInternalSecret); v != "" {
		cfg.InternalSecret = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvBaseDomain); v != "" {
		cfg.BaseDomain = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}
	if c.InternalSecret == "" {
		return fmt.Errorf("internalSecret is required (set %s)", EnvInternalSecret)
	}
	if c.ActorIdleTTL < 0 || c.HubKeepAlive < 0 {
		return fmt.Errorf("TTLs must not be negative")
	}
	return nil
}
