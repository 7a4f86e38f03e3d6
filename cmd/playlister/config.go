package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"playlister/internal/store"
)

// Config contains application-wide settings sourced from the environment.
type Config struct {
	Store          store.Config
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
	LogLevel       string
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Store: store.Config{
			Backend:     envOrDefault("DB_CHOICE", store.BackendPostgres),
			PostgresURL: os.Getenv("POSTGRES_DB_CONNECT"),
			Surreal: store.SurrealConfig{
				URL:       os.Getenv("SURREALDB_CONNECT"),
				Namespace: envOrDefault("SURREALDB_NS", "playlister"),
				Database:  envOrDefault("SURREALDB_DB", "playlister"),
				User:      os.Getenv("SURREALDB_USER"),
				Pass:      os.Getenv("SURREALDB_PASS"),
			},
		},
		Addr:           fmt.Sprintf(":%s", envOrDefault("PORT", "8080")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: parseAllowedOrigins(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET env var is required")
	}
	switch strings.ToLower(cfg.Store.Backend) {
	case store.BackendPostgres:
		if cfg.Store.PostgresURL == "" {
			return Config{}, errors.New("POSTGRES_DB_CONNECT env var is required")
		}
	case store.BackendSurreal:
		if cfg.Store.Surreal.URL == "" {
			return Config{}, errors.New("SURREALDB_CONNECT env var is required")
		}
	default:
		return Config{}, fmt.Errorf("DB_CHOICE must be %q or %q", store.BackendPostgres, store.BackendSurreal)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseAllowedOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	var origins []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
