package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Save.MaxAttempts)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"listen_addr": "0.0.0.0:9000",
		"database_path": "custom.db",
		"cache_dir": "cachedir",
		"user": {"id": "u-42", "name": "Ana"},
		"save": {"max_attempts": 5, "base_delay_ms": 100, "attempt_base_ms": 2000, "attempt_growth_ms": 500, "mirror_delay_ms": 200},
		"planning": {"hours_per_day": 8, "sprint_work_days": 5},
		"standup_minutes": 10
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "u-42", cfg.User.ID)
	assert.Equal(t, 10, cfg.StandupMinutes)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 2*time.Second, policy.AttemptBase)
	assert.Equal(t, 200*time.Millisecond, cfg.MirrorDelay())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGILEFORGE_LISTEN_ADDR", "127.0.0.1:7999")
	t.Setenv("AGILEFORGE_USER_ID", "env-user")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7999", cfg.ListenAddr)
	assert.Equal(t, "env-user", cfg.User.ID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_addr": ""}`), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "listen_addr")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty_db", func(c *Config) { c.DatabasePath = "" }, "database_path"},
		{"empty_user", func(c *Config) { c.User.ID = "" }, "user.id"},
		{"zero_attempts", func(c *Config) { c.Save.MaxAttempts = 0 }, "max_attempts"},
		{"bad_hours", func(c *Config) { c.Planning.HoursPerDay = 0 }, "hours_per_day"},
		{"bad_days", func(c *Config) { c.Planning.SprintWorkDays = -1 }, "sprint_work_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
