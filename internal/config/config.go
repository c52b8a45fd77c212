package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	CookieSecure      bool
	CookieSameSite    http.SameSite
	CookieDomain      string
	RefreshCookiePath string

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	sameSite, err := ParseSameSite(EnvDefault("COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr: EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel: EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      EnvDefault("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),

		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		AccessTokenTTL:  EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: EnvDurationDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:      EnvIntDefault("BCRYPT_COST", 0),

		CookieSecure:      EnvBoolDefault("COOKIE_SECURE", true),
		CookieSameSite:    sameSite,
		CookieDomain:      os.Getenv("COOKIE_DOMAIN"),
		RefreshCookiePath: EnvDefault("REFRESH_COOKIE_PATH", "/api/auth"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "auth_events"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.CookieSameSite == http.SameSiteNoneMode && !c.CookieSecure {
		return errors.New("config: COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL assembled from the DB_* keys.
// For the sqlite driver DATABASE_URL is the database file path.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite" {
		return "orgsite.db"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

func ParseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("config: unknown COOKIE_SAMESITE %q", v)
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
