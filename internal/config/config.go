package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabaseDSN  string
	JWTSecret    string
	Env          string
	TokenTTLDays int
}

const defaultSecret = "dev-secret-change-me"

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load reads configuration from the environment, preloading a .env file
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	port := getenv("APP_PORT", "8080")
	dsn := getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=pinge port=5432 sslmode=disable TimeZone=UTC")
	secret := getenv("JWT_SECRET", defaultSecret)
	env := getenv("APP_ENV", "dev")
	ttlStr := getenv("TOKEN_TTL_DAYS", "7")
	ttl, _ := strconv.Atoi(ttlStr)
	if ttl <= 0 {
		ttl = 7
	}
	return Config{
		Port:         port,
		DatabaseDSN:  dsn,
		JWTSecret:    secret,
		Env:          env,
		TokenTTLDays: ttl,
	}
}

// Validate rejects configurations that must not reach a running server,
// in particular the default signing secret outside dev.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: database dsn is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwt secret is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultSecret {
		return errors.New("config: default jwt secret is not allowed outside dev")
	}
	return nil
}
