// Package config provides configuration loading, validation, and defaults
// for the agileforge server. It handles a JSON config file with environment
// variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"agileforge/pkg/retry"
)

// Defaults.
const (
	DefaultListenAddr     = "127.0.0.1:8720"
	DefaultDatabaseFile   = "agileforge.db"
	DefaultCacheDir       = ".agileforge/cache"
	DefaultStandupMinutes = 15

	DefaultHoursPerDay    = 6.0
	DefaultSprintWorkDays = 10
)

// UserConfig identifies the single deployment user.
type UserConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveConfig tunes the remote save protocol.
type SaveConfig struct {
	MaxAttempts     int `json:"max_attempts"`
	BaseDelayMS     int `json:"base_delay_ms"`
	AttemptBaseMS   int `json:"attempt_base_ms"`
	AttemptGrowthMS int `json:"attempt_growth_ms"`
	MirrorDelayMS   int `json:"mirror_delay_ms"`
}

// PlanningConfig tunes the sprint-count projection defaults.
type PlanningConfig struct {
	HoursPerDay    float64 `json:"hours_per_day"`
	SprintWorkDays float64 `json:"sprint_work_days"`
}

// Config is the root configuration.
type Config struct {
	ListenAddr      string         `json:"listen_addr"`
	DatabasePath    string         `json:"database_path"`
	CacheDir        string         `json:"cache_dir"`
	WebPasswordHash string         `json:"web_password_hash,omitempty"`
	StandupMinutes  int            `json:"standup_minutes"`
	User            UserConfig     `json:"user"`
	Save            SaveConfig     `json:"save"`
	Planning        PlanningConfig `json:"planning"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := retry.DefaultPolicy
	return Config{
		ListenAddr:     DefaultListenAddr,
		DatabasePath:   DefaultDatabaseFile,
		CacheDir:       DefaultCacheDir,
		StandupMinutes: DefaultStandupMinutes,
		User:           UserConfig{ID: "local", Name: "Local User"},
		Save: SaveConfig{
			MaxAttempts:     policy.MaxAttempts,
			BaseDelayMS:     int(policy.BaseDelay / time.Millisecond),
			AttemptBaseMS:   int(policy.AttemptBase / time.Millisecond),
			AttemptGrowthMS: int(policy.AttemptGrowth / time.Millisecond),
			MirrorDelayMS:   800,
		},
		Planning: PlanningConfig{
			HoursPerDay:    DefaultHoursPerDay,
			SprintWorkDays: DefaultSprintWorkDays,
		},
	}
}

// Load reads the config file, falling back to defaults when the file is
// absent, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for the
// deployment-specific knobs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGILEFORGE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("AGILEFORGE_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("AGILEFORGE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("AGILEFORGE_WEB_PASSWORD_HASH"); v != "" {
		cfg.WebPasswordHash = v
	}
	if v := os.Getenv("AGILEFORGE_USER_ID"); v != "" {
		cfg.User.ID = v
	}
	if v := os.Getenv("AGILEFORGE_STANDUP_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.StandupMinutes = minutes
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	if c.User.ID == "" {
		return fmt.Errorf("user.id cannot be empty")
	}
	if c.Save.MaxAttempts < 1 {
		return fmt.Errorf("save.max_attempts must be at least 1")
	}
	if c.Planning.HoursPerDay <= 0 {
		return fmt.Errorf("planning.hours_per_day must be positive")
	}
	if c.Planning.SprintWorkDays <= 0 {
		return fmt.Errorf("planning.sprint_work_days must be positive")
	}
	return nil
}

// RetryPolicy converts the save tuning into a retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   c.Save.MaxAttempts,
		BaseDelay:     time.Duration(c.Save.BaseDelayMS) * time.Millisecond,
		BackoffFactor: 2.0,
		AttemptBase:   time.Duration(c.Save.AttemptBaseMS) * time.Millisecond,
		AttemptGrowth: time.Duration(c.Save.AttemptGrowthMS) * time.Millisecond,
	}
}

// MirrorDelay returns the debounce quiet period for the cache mirror.
func (c *Config) MirrorDelay() time.Duration {
	if c.Save.MirrorDelayMS <= 0 {
		return 800 * time.Millisecond
	}
	return time.Duration(c.Save.MirrorDelayMS) * time.Millisecond
}
