package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
)

// AdminSeed is one bootstrap admin account from the config file.
type AdminSeed struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Config struct {
	Env            string      `json:"env"`
	Port           int         `json:"port"`
	DBURL          string      `json:"database_url"`
	AllowedOrigins []string    `json:"allowed_origins"`
	Admins         []AdminSeed `json:"admins"`

	// Secrets come from the environment only, never the config file.
	JWTSecret    string `json:"-"`
	OTLPEndpoint string `json:"-"`
}

// Load builds the process configuration: defaults, then the JSON config
// file (if present), then environment overrides. Both the signing secret
// and the store handle are read once here and injected; nothing else in
// the codebase touches the environment.
func Load(path string) (Config, error) {
	cfg := Config{
		Env:  "dev",
		Port: 8080,
	}

	if path != "" {
		data, err := os.ReadFile(path)

		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// file is optional, env alone can configure the process
		default:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Port = getEnvInt("PORT", cfg.Port)

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBURL = v
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL()
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return cfg, nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "evergogreen")
	pass := getEnv("DB_PASSWORD", "evergogreen")
	name := getEnv("DB_NAME", "evergogreen")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}

	return fallback
}
