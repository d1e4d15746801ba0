// Package config lê a configuração dos binários a partir do ambiente.
// Um arquivo .env no diretório corrente é carregado antes, se existir.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string
	LogLevel    string

	RateEnabled      bool
	RateDir          string
	RateMaxRequests  int
	RatePeriod       time.Duration
	RateDebounce     time.Duration
	RateStrict       bool
	RateKeyHeader    string
	TrustXFF         bool
	RetryAfter       time.Duration
	AddHeaders       bool
	RateJanitorEvery time.Duration
	LockTimeout      time.Duration
	LockRetry        time.Duration
	LockAttempts     int
	MaxOpenFiles     int

	StatsEnabled       bool
	StatsRedisAddr     string
	StatsRedisPassword string
	StatsRedisDB       int
	StatsPrefix        string
	StatsTTL           time.Duration
	StatsBucket        string
	StatsTrackKeys     bool

	DemoUser     string
	DemoPassword string
	BcryptCost   int
}

// Load carrega .env (opcional) e lê as variáveis. Valores inválidos caem no padrão.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{}
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.UpstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.RateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.RateDir = getenvDefault("RATE_DIR", "./data/ratelimit")
	cfg.RateMaxRequests = getenvIntDefault("RATE_MAX_REQUESTS", 60)
	cfg.RatePeriod = getenvDurationDefault("RATE_PERIOD", time.Minute)
	cfg.RateDebounce = getenvDurationDefault("RATE_DEBOUNCE", 0)
	cfg.RateStrict = getenvBoolDefault("RATE_STRICT", false)
	cfg.RateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.TrustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.RetryAfter = getenvDurationDefault("RETRY_AFTER", 0)
	cfg.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.RateJanitorEvery = getenvDurationDefault("RATE_JANITOR_EVERY", 0)
	cfg.LockTimeout = getenvDurationDefault("RATE_LOCK_TIMEOUT", 2*time.Second)
	cfg.LockRetry = getenvDurationDefault("RATE_LOCK_RETRY", 10*time.Millisecond)
	cfg.LockAttempts = getenvIntDefault("RATE_LOCK_ATTEMPTS", 200)
	cfg.MaxOpenFiles = getenvIntDefault("RATE_MAX_OPEN_FILES", 0)

	cfg.StatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.StatsRedisAddr = os.Getenv("RATE_STATS_REDIS_ADDR")
	cfg.StatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.StatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.StatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.StatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.StatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.StatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.DemoUser = getenvDefault("DEMO_USER", "admin")
	cfg.DemoPassword = os.Getenv("DEMO_PASSWORD")
	cfg.BcryptCost = getenvIntDefault("BCRYPT_COST", bcrypt.DefaultCost)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate não exige UPSTREAM_URL: só o gateway precisa dele.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RateDir) == "" {
		errs = append(errs, errors.New("RATE_DIR is required"))
	}
	if c.RateMaxRequests < 0 {
		errs = append(errs, errors.New("RATE_MAX_REQUESTS must be >= 0"))
	}
	if c.RatePeriod < time.Second {
		errs = append(errs, errors.New("RATE_PERIOD must be >= 1s"))
	}
	if c.RateDebounce < 0 {
		errs = append(errs, errors.New("RATE_DEBOUNCE must be >= 0"))
	}
	if c.LockTimeout <= 0 || c.LockRetry <= 0 || c.LockAttempts <= 0 {
		errs = append(errs, errors.New("RATE_LOCK_TIMEOUT, RATE_LOCK_RETRY and RATE_LOCK_ATTEMPTS must be > 0"))
	}
	if c.MaxOpenFiles < 0 {
		errs = append(errs, errors.New("RATE_MAX_OPEN_FILES must be >= 0"))
	}
	if c.StatsEnabled && strings.TrimSpace(c.StatsRedisAddr) == "" {
		errs = append(errs, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// aceita "30s", "1m" ou um inteiro em segundos.
func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
