package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/segment-architect/oracle"
)

var allKeys = []string{
	"PORT", "GIN_MODE", EnvDevMode, "LOG_LEVEL", "DATA_DIR",
	"GEMINI_API_KEY", "API_KEY", "GEMINI_MODEL", "GEMINI_THINKING_BUDGET", "GEMINI_BASE_URL",
	"MAX_SEGMENTS", "ORACLE_TIMEOUT", "PROBE_ENABLED", "PROBE_TIMEOUT",
	"RATE_LIMIT", "RATE_BURST", "SESSION_TTL",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, oracle.DefaultModel, cfg.Oracle.Model)
	assert.Equal(t, int32(4000), cfg.Oracle.ThinkingBudget)
	assert.Equal(t, 7, cfg.Oracle.MaxSegments)
	assert.Equal(t, 2*time.Minute, cfg.Oracle.Timeout)
	assert.Empty(t, cfg.Oracle.BaseURL)
	assert.True(t, cfg.ProbeEnabled)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 5.0, cfg.RateBurst)
	assert.Equal(t, time.Hour, cfg.SessionTTL)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("GIN_MODE", "debug")
	t.Setenv(EnvDevMode, "true")
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	t.Setenv("GEMINI_THINKING_BUDGET", "0")
	t.Setenv("GEMINI_BASE_URL", "http://localhost:1234")
	t.Setenv("MAX_SEGMENTS", "5")
	t.Setenv("ORACLE_TIMEOUT", "30s")
	t.Setenv("PROBE_ENABLED", "false")
	t.Setenv("RATE_LIMIT", "0.5")
	t.Setenv("SESSION_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "key-1", cfg.Oracle.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Oracle.Model)
	assert.Equal(t, int32(0), cfg.Oracle.ThinkingBudget)
	assert.Equal(t, "http://localhost:1234", cfg.Oracle.BaseURL)
	assert.Equal(t, 5, cfg.Oracle.MaxSegments)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.False(t, cfg.ProbeEnabled)
	assert.Equal(t, 0.5, cfg.RateLimit)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
}

func TestAPIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Oracle.APIKey)

	t.Setenv("GEMINI_API_KEY", "primary")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Oracle.APIKey)
}

func TestLoadReportsEveryMalformedValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_SEGMENTS", "seven")
	t.Setenv("ORACLE_TIMEOUT", "soon")
	t.Setenv("PROBE_ENABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_SEGMENTS")
	assert.Contains(t, err.Error(), "ORACLE_TIMEOUT")
	assert.Contains(t, err.Error(), "PROBE_ENABLED")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GinMode:   "release",
			Oracle:    oracle.Config{APIKey: "k", MaxSegments: 7},
			RateLimit: 2,
			RateBurst: 5,
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"blank key":     func(c *Config) { c.Oracle.APIKey = "  " },
		"zero segments": func(c *Config) { c.Oracle.MaxSegments = 0 },
		"zero rate":     func(c *Config) { c.RateLimit = 0 },
		"tiny burst":    func(c *Config) { c.RateBurst = 0.5 },
		"gin mode":      func(c *Config) { c.GinMode = "prod" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	assert.Empty(t, LoadEnvFiles())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_MODEL=from-dotenv\n"), 0644))
	assert.Equal(t, ".env", LoadEnvFiles())

	// godotenv does not override variables that are already set
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, oracle.DefaultModel, cfg.Oracle.Model)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.development"), []byte("PORT=7000\n"), 0644))
	assert.Equal(t, ".env.development", LoadEnvFiles())
}
