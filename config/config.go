// Package config reads the service configuration from the environment,
// after loading .env files for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/seo-optimizer/segment-architect/oracle"
)

// Environment variable name for controlling statistics visibility
const EnvDevMode = "DEV_MODE"

// ErrMissingAPIKey is returned by Validate when no model key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY (or API_KEY) is not set")

// Config is the complete service configuration.
type Config struct {
	Port    string
	GinMode string
	DevMode bool

	LogLevel string
	DataDir  string

	Oracle oracle.Config

	ProbeEnabled bool
	ProbeTimeout time.Duration

	RateLimit  float64
	RateBurst  float64
	SessionTTL time.Duration
}

// LoadEnvFiles loads .env.development, falling back to .env. Missing files
// are not an error; it reports which file was loaded, if any.
func LoadEnvFiles() string {
	for _, name := range []string{".env.development", ".env"} {
		if err := godotenv.Load(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads the configuration from the environment. Malformed values are
// reported; absent ones take defaults.
func Load() (*Config, error) {
	p := parser{}

	cfg := &Config{
		Port:     p.str("PORT", "8082"),
		GinMode:  p.str("GIN_MODE", gin.ReleaseMode),
		DevMode:  p.boolean(EnvDevMode, false),
		LogLevel: p.str("LOG_LEVEL", "info"),
		DataDir:  p.str("DATA_DIR", "data"),
		Oracle: oracle.Config{
			APIKey:         p.str("GEMINI_API_KEY", os.Getenv("API_KEY")),
			Model:          p.str("GEMINI_MODEL", oracle.DefaultModel),
			ThinkingBudget: int32(p.integer("GEMINI_THINKING_BUDGET", oracle.DefaultThinkingBudget)),
			MaxSegments:    p.integer("MAX_SEGMENTS", oracle.DefaultMaxSegments),
			Timeout:        p.duration("ORACLE_TIMEOUT", oracle.DefaultTimeout),
			BaseURL:        p.str("GEMINI_BASE_URL", ""),
		},
		ProbeEnabled: p.boolean("PROBE_ENABLED", true),
		ProbeTimeout: p.duration("PROBE_TIMEOUT", 10*time.Second),
		RateLimit:    p.float("RATE_LIMIT", 2),
		RateBurst:    p.float("RATE_BURST", 5),
		SessionTTL:   p.duration("SESSION_TTL", time.Hour),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Oracle.APIKey) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.Oracle.MaxSegments < 1 {
		errs = append(errs, fmt.Errorf("MAX_SEGMENTS must be at least 1, got %d", c.Oracle.MaxSegments))
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must be positive and RATE_BURST at least 1, got %v/%v", c.RateLimit, c.RateBurst))
	}
	switch c.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE %q is not one of debug, release, test", c.GinMode))
	}
	return errors.Join(errs...)
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
