package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDSN selects the in-process store instead of Postgres (dev only).
const MemoryDSN = "memory://"

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr     string
	MaxBodyBytes int64
	//Auth / Security
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// Infrastructure
	DBAddr        string
	DBDebug       bool
	DBLockTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitURL      string
	RabbitExchange string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Email verification links (sent via the broker)
	VerifyEmailBaseURL  string
	VerifyEmailTokenTTL time.Duration

	// Per-route fixed window limits (requests per RateLimitWindow)
	RateLimitWindow  time.Duration
	SignUpRateLimit  int
	LoginRateLimit   int
	DefaultRateLimit int
	// Per-IP ceiling across all routes, enforced in process (0 disables)
	GlobalRateLimit int
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads the environment, optionally seeded from a .env file.
// Variables already present in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "community-service"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "community.identity"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if !cfg.IsDev() && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes outside dev")
	}

	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	if cfg.DBAddr == MemoryDSN && !cfg.IsDev() {
		return nil, fmt.Errorf("DB_ADDR=%s is only allowed when ENV=dev", MemoryDSN)
	}

	// Must include `token=` because the service appends the token.
	cfg.VerifyEmailBaseURL = getEnv("VERIFY_EMAIL_BASE_URL", "http://localhost:3000/verify-email?token=")
	if !strings.Contains(cfg.VerifyEmailBaseURL, "token=") {
		return nil, fmt.Errorf("VERIFY_EMAIL_BASE_URL must contain `token=`")
	}

	// Broker is optional only in dev (events fall back to the log).
	if cfg.RabbitURL == "" && !cfg.IsDev() {
		return nil, fmt.Errorf("missing required env var: RABBIT_URL")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", 5 * time.Minute, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", 24 * time.Hour, &cfg.RefreshTokenTTL},
		{"VERIFY_EMAIL_TOKEN_TTL", 24 * time.Hour, &cfg.VerifyEmailTokenTTL},
		{"DB_LOCK_TIMEOUT", 5 * time.Second, &cfg.DBLockTimeout},
		{"HTTP_READ_TIMEOUT", 10 * time.Second, &cfg.HTTPReadTimeout},
		{"HTTP_WRITE_TIMEOUT", 30 * time.Second, &cfg.HTTPWriteTimeout},
		{"HTTP_IDLE_TIMEOUT", time.Minute, &cfg.HTTPIdleTimeout},
		{"RATE_LIMIT_WINDOW", time.Minute, &cfg.RateLimitWindow},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"REDIS_DB", 0, &cfg.RedisDB},
		{"BCRYPT_COST", 12, &cfg.BcryptCost},
		{"SIGN_UP_RATE_LIMIT", 10, &cfg.SignUpRateLimit},
		{"LOGIN_RATE_LIMIT", 20, &cfg.LoginRateLimit},
		{"DEFAULT_RATE_LIMIT", 300, &cfg.DefaultRateLimit},
		{"GLOBAL_RATE_LIMIT", 1000, &cfg.GlobalRateLimit},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	mb, err := getInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(mb)

	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
