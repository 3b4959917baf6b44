// Package config loads and validates all environment variables at startup.
// Every other package receives typed values — nothing reads os.Getenv directly.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port string // default "8080"
	Env  string // "development" | "staging" | "production"

	// ── Gemini ────────────────────────────────────────────────────────────────
	GeminiAPIKey string
	GeminiModel  string // default "gemini-2.0-flash"

	// ClassifyTimeout bounds the fallback classification call; failures
	// collapse to unknown_general. Default 10s.
	ClassifyTimeout time.Duration

	// SynthesisTimeout bounds the whole synthesis chain per request.
	// Default 60s.
	SynthesisTimeout time.Duration

	// AIRequestsPerSecond / AIBurst configure the proactive token bucket in
	// front of all Gemini calls. Defaults: 2 rps, burst 4.
	AIRequestsPerSecond float64
	AIBurst             int

	// ── Guide catalog ─────────────────────────────────────────────────────────
	// CatalogDatabaseURL selects the Postgres catalog source when set;
	// otherwise GuidesMapPath is read as a JSON file.
	CatalogDatabaseURL string
	GuidesMapPath      string        // default "guides_map.json"
	CatalogRefresh     time.Duration // default 1h

	// ── Situations seed ───────────────────────────────────────────────────────
	// Optional static list of situations and triage questions served on
	// /api/situations. Empty path disables the endpoint's content (it then
	// serves an empty list).
	SituationsPath string
}

// Load reads all environment variables and returns a validated Config.
// It automatically loads a .env file from the working directory when present,
// so plain `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	c := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifyTimeout:     getEnvAsDuration("CLASSIFY_TIMEOUT", 10*time.Second),
		SynthesisTimeout:    getEnvAsDuration("SYNTHESIS_TIMEOUT", 60*time.Second),
		AIRequestsPerSecond: getEnvAsFloat("AI_REQUESTS_PER_SECOND", 2),
		AIBurst:             getEnvAsInt("AI_BURST", 4),
		CatalogDatabaseURL:  os.Getenv("CATALOG_DATABASE_URL"),
		GuidesMapPath:       getEnv("GUIDES_MAP_PATH", "guides_map.json"),
		CatalogRefresh:      getEnvAsDuration("CATALOG_REFRESH_INTERVAL", time.Hour),
		SituationsPath:      getEnv("SITUATIONS_PATH", "situations_seed.json"),
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	var errs []error

	if c.GeminiAPIKey == "" {
		errs = append(errs, fmt.Errorf("missing required env var: GEMINI_API_KEY"))
	}
	if c.CatalogDatabaseURL == "" && c.GuidesMapPath == "" {
		errs = append(errs, fmt.Errorf("one of CATALOG_DATABASE_URL or GUIDES_MAP_PATH must be set"))
	}

	return errors.Join(errs...)
}

// ─── DOT-ENV LOADER ──────────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the environment,
// but only for keys that are not already set. This means real env vars (e.g.
// from Docker / Railway / your shell) always win over the file.
// Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file absent — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Strip optional surrounding quotes: KEY="value" or KEY='value'
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		// Only set if the key isn't already present in the environment.
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// Try a plain integer first (treated as seconds, minutes, or hours
	// depending on the variable name).
	if value, err := strconv.Atoi(valueStr); err == nil {
		switch {
		case strings.Contains(key, "HOURS"):
			return time.Duration(value) * time.Hour
		case strings.Contains(key, "MINUTES"):
			return time.Duration(value) * time.Minute
		default:
			return time.Duration(value) * time.Second
		}
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
