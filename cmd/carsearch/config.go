package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application-wide settings sourced from the environment.
type Config struct {
	DatabaseURL      string
	Addr             string
	AllowedOrigins   []string
	AdminTokenSecret string
	FacetCacheTTL    time.Duration
	LogLevel         string
	LogFormat        string
	SeedDemoData     bool
}

func loadConfig() (Config, error) {
	_ = godotenv.Load("config/local.env")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Config{}, errors.New("DATABASE_URL env var is required")
	}

	secret := os.Getenv("ADMIN_TOKEN_SECRET")
	if secret == "" {
		return Config{}, errors.New("ADMIN_TOKEN_SECRET env var is required")
	}

	addr := fmt.Sprintf(":%s", envOrDefault("PORT", "8080"))

	origins := parseAllowedOrigins(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))

	ttlSeconds, err := strconv.Atoi(envOrDefault("FACET_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttlSeconds <= 0 {
		return Config{}, fmt.Errorf("FACET_CACHE_TTL_SECONDS must be a positive integer")
	}

	return Config{
		DatabaseURL:      dsn,
		Addr:             addr,
		AllowedOrigins:   origins,
		AdminTokenSecret: secret,
		FacetCacheTTL:    time.Duration(ttlSeconds) * time.Second,
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		SeedDemoData:     envOrDefault("SEED_DEMO_DATA", "false") == "true",
	}, nil
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
