package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"httpcore/pkg/errors"
)

// Loader loads configuration from file
type Loader struct {
	path       string
	envEnabled bool
}

// NewLoader creates a config loader
func NewLoader(path string) *Loader {
	return &Loader{
		path:       path,
		envEnabled: true, // Enable env vars by default
	}
}

// WithEnvVars enables or disables environment variable loading
func (l *Loader) WithEnvVars(enabled bool) *Loader {
	l.envEnabled = enabled
	return l
}

// Load loads the configuration
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, "failed to read config file").WithCause(err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, "failed to parse config").WithCause(err)
	}

	// Override with environment variables if enabled
	if l.envEnabled {
		if err := LoadEnv(cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeInternal, "failed to load env vars").WithCause(err)
		}
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeBadRequest, "invalid configuration").WithCause(err)
	}

	return cfg, nil
}

// Load reads, overlays, and validates the configuration at path.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Validate checks the configuration for values the engine cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Server.Backend {
	case "eventloop", "blocking":
	default:
		return fmt.Errorf("unknown backend: %q (want eventloop or blocking)", cfg.Server.Backend)
	}

	if cfg.Server.ReadBufferSize <= 0 {
		return fmt.Errorf("readBufferSize must be positive, got %d", cfg.Server.ReadBufferSize)
	}
	if cfg.Server.WriteQueueLimit <= 0 {
		return fmt.Errorf("writeQueueLimit must be positive, got %d", cfg.Server.WriteQueueLimit)
	}

	switch cfg.Replay.Backend {
	case "", "none", "memory":
	case "redis":
		if cfg.Replay.Redis == nil || cfg.Replay.Redis.Addr == "" {
			return fmt.Errorf("replay backend redis requires a redis address")
		}
	default:
		return fmt.Errorf("unknown replay backend: %q", cfg.Replay.Backend)
	}

	if cfg.Management.Enabled && (cfg.Management.Port <= 0 || cfg.Management.Port > 65535) {
		return fmt.Errorf("invalid management port: %d", cfg.Management.Port)
	}

	return nil
}
