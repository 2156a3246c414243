package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hnrobert/gatekeep/internal/datafs"
	"github.com/hnrobert/gatekeep/internal/lockout"
	"github.com/hnrobert/gatekeep/internal/session"
)

const (
	DefaultListen        = "127.0.0.1:8765"
	DefaultSweepInterval = 5 * time.Minute

	EnvConfig  = "GATEKEEP_CONFIG"
	EnvListen  = "GATEKEEP_LISTEN"
	EnvDataDir = "GATEKEEP_DATA_DIR"
	EnvLogDir  = "GATEKEEP_LOG_DIR"
)

type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
	// LogDir defaults to <data_dir>/logs.
	LogDir string `yaml:"log_dir"`
	Auth   Auth   `yaml:"auth"`
}

type Auth struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	LockoutDuration   time.Duration `yaml:"lockout_duration"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	MinPasswordLength int           `yaml:"min_password_length"`
	StrictStore       bool          `yaml:"strict_store"`
}

func Default() Config {
	return Config{
		Listen:  DefaultListen,
		DataDir: datafs.DefaultDir(),
		Auth: Auth{
			MaxAttempts:       lockout.DefaultMaxAttempts,
			LockoutDuration:   lockout.DefaultDuration,
			SessionTTL:        session.DefaultTTL,
			SweepInterval:     DefaultSweepInterval,
			MinPasswordLength: session.DefaultMinPasswordLength,
		},
	}
}

// Load layers the YAML file at path (if path is non-empty) and then the
// GATEKEEP_* environment over Default, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if len(bytes.TrimSpace(b)) > 0 {
			dec := yaml.NewDecoder(bytes.NewReader(b))
			dec.KnownFields(true)
			if err := dec.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.DataDir = datafs.ExpandHome(cfg.DataDir)
	cfg.LogDir = datafs.ExpandHome(cfg.LogDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getenvDefault(EnvListen, c.Listen)
	c.DataDir = getenvDefault(EnvDataDir, c.DataDir)
	c.LogDir = getenvDefault(EnvLogDir, c.LogDir)
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.Auth.MaxAttempts <= 0 {
		errs = append(errs, errors.New("auth.max_attempts must be positive"))
	}
	if c.Auth.LockoutDuration <= 0 {
		errs = append(errs, errors.New("auth.lockout_duration must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.SweepInterval <= 0 {
		errs = append(errs, errors.New("auth.sweep_interval must be positive"))
	}
	if c.Auth.MinPasswordLength <= 0 {
		errs = append(errs, errors.New("auth.min_password_length must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) UsersPath() string {
	return filepath.Join(c.DataDir, datafs.UsersFile)
}

func (c Config) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.DataDir, datafs.LogsDir)
}

func (c Config) Lockout() lockout.Config {
	return lockout.Config{MaxAttempts: c.Auth.MaxAttempts, Duration: c.Auth.LockoutDuration}
}

func (c Config) Session() session.Options {
	return session.Options{TTL: c.Auth.SessionTTL, MinPasswordLength: c.Auth.MinPasswordLength}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
