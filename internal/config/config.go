package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sesamum.org/internal/obs"
)

const (
	DefaultAPIBaseURL   = "http://localhost:8000"
	DefaultAPITimeout   = 30 * time.Second
	DefaultPollInterval = 600000 * time.Millisecond

	DefaultConnectivityInterval = 30 * time.Second
)

// Config holds agent settings read from SESAMUM_* environment variables.
type Config struct {
	Addr string

	APIBaseURL   string
	APITimeout   time.Duration
	APIRateLimit float64
	APIRateBurst int

	PollInterval    time.Duration
	PollEnabled     bool
	PauseWhenHidden bool

	// ConnectivityInterval is the upstream reachability probe period; 0 disables it.
	ConnectivityInterval time.Duration

	// AuthSecret verifies bearer tokens presented to the agent's own HTTP API.
	AuthSecret string
	// DevMode enables the X-User-Role override and the built-in dev user.
	DevMode    bool

	// StateBackend selects client state storage: memory, sqlite or postgres.
	StateBackend string
	StatePath    string
	PostgresDSN  string

	RateBurst  int
	RatePerSec int
}

// LoadDotEnv loads .env from the working directory when present.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		obs.Warn("dotenv load failed", map[string]any{"err": err})
	}
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:            getEnv("SESAMUM_ADDR", ":8080"),
		APIBaseURL:      strings.TrimRight(getEnv("SESAMUM_API_BASE_URL", DefaultAPIBaseURL), "/"),
		AuthSecret:      os.Getenv("SESAMUM_AUTH_SECRET"),
		StateBackend:    strings.ToLower(getEnv("SESAMUM_STATE_BACKEND", "memory")),
		StatePath:       os.Getenv("SESAMUM_STATE_PATH"),
		PostgresDSN:     os.Getenv("SESAMUM_PG_DSN"),
		APITimeout:      DefaultAPITimeout,
		PollInterval:    DefaultPollInterval,
		PollEnabled:     true,
		PauseWhenHidden: true,
		APIRateLimit:    10,
		APIRateBurst:    20,
		RateBurst:       20,
		RatePerSec:      10,

		ConnectivityInterval: DefaultConnectivityInterval,
	}

	var err error
	if cfg.APITimeout, err = durationEnv("SESAMUM_API_TIMEOUT", cfg.APITimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = durationEnv("SESAMUM_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ConnectivityInterval, err = durationEnv("SESAMUM_CONNECTIVITY_INTERVAL", cfg.ConnectivityInterval); err != nil {
		return Config{}, err
	}
	if cfg.PollEnabled, err = boolEnv("SESAMUM_POLL_ENABLED", cfg.PollEnabled); err != nil {
		return Config{}, err
	}
	if cfg.PauseWhenHidden, err = boolEnv("SESAMUM_POLL_PAUSE_WHEN_HIDDEN", cfg.PauseWhenHidden); err != nil {
		return Config{}, err
	}
	if cfg.DevMode, err = boolEnv("SESAMUM_DEV_MODE", false); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intEnv("SESAMUM_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intEnv("SESAMUM_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.APIRateBurst, err = intEnv("SESAMUM_API_RATE_BURST", cfg.APIRateBurst); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SESAMUM_API_RATE_LIMIT"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return Config{}, fmt.Errorf("SESAMUM_API_RATE_LIMIT: %w", perr)
		}
		cfg.APIRateLimit = f
	}

	switch cfg.StateBackend {
	case "memory", "sqlite":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return Config{}, errors.New("SESAMUM_PG_DSN is required for the postgres state backend")
		}
	default:
		return Config{}, fmt.Errorf("unsupported SESAMUM_STATE_BACKEND %q", cfg.StateBackend)
	}
	if !cfg.DevMode && cfg.AuthSecret == "" {
		return Config{}, errors.New("SESAMUM_AUTH_SECRET is required outside dev mode")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("10m") or bare milliseconds ("600000").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
