// internal/config/config.go
//
// Environment-driven configuration. main loads .env first (godotenv), then
// Load reads the process environment into a Config with defaults.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/round"
)

// Config holds every runtime setting.
type Config struct {
	Port      string
	LogLevel  string
	Store     string // "sqlite" | "memory"
	DBPath    string
	WordsFile string

	RoundPeriod time.Duration
	MaxAttempts int
	RevealWord  bool

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool
	AdminToken     string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the environment. It fails only on malformed values.
func Load() (Config, error) {
	c := Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Store:        strings.ToLower(getEnv("STORE", "sqlite")),
		DBPath:       getEnv("DB_PATH", "./data/wordle.db"),
		WordsFile:    os.Getenv("WORDS_FILE"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		CookieName:   getEnv("COOKIE_NAME", "wordle_token"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:   os.Getenv("NODE_ENV") == "production",
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
	}

	var err error
	if c.RoundPeriod, err = envDuration("ROUND_PERIOD", round.DefaultPeriod); err != nil {
		return c, err
	}
	if c.MaxAttempts, err = envInt("MAX_ATTEMPTS", game.DefaultMaxAttempts); err != nil {
		return c, err
	}
	if c.JWTExpiresDays, err = envInt("JWT_EXPIRES_DAYS", 14); err != nil {
		return c, err
	}
	if c.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 10); err != nil {
		return c, err
	}
	if c.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", 5); err != nil {
		return c, err
	}
	if c.RevealWord, err = envBool("REVEAL_WORD", false); err != nil {
		return c, err
	}

	if c.Store != "sqlite" && c.Store != "memory" {
		return c, fmt.Errorf("STORE: unknown store %q (want sqlite or memory)", c.Store)
	}
	if c.RoundPeriod <= 0 {
		return c, fmt.Errorf("ROUND_PERIOD must be positive, got %s", c.RoundPeriod)
	}
	if c.MaxAttempts <= 0 {
		return c, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	return c, nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

func envBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

// envDuration accepts Go durations ("5m") or plain milliseconds ("300000").
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
