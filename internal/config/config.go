// Package config loads runtime settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tckmpsi/kq-classifier/internal/client"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

// Server configures cmd/server.
type Server struct {
	Port          string
	ModelsDir     string
	ModelNames    []string
	OrtLibrary    string
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	VisionEnabled bool
	LogLevel      slog.Level
}

// Client configures the remote endpoint used by cmd/classify.
type Client struct {
	client.Config
}

// LoadServer reads the server settings.
func LoadServer() Server {
	return Server{
		Port:          getEnv("PORT", "8088"),
		ModelsDir:     getEnv("MODELS_DIR", "models"),
		ModelNames:    getEnvList("MODEL_NAMES", model.DefaultNames),
		OrtLibrary:    os.Getenv("ORT_LIBRARY_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),
		VisionEnabled: getEnvBool("VISION_ENABLED", false),
		LogLevel:      getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// LoadClient reads the remote endpoint settings.
func LoadClient() Client {
	return Client{client.Config{
		BaseURL: getEnv("KQ_SERVER_URL", client.DefaultBaseURL),
		Timeout: getEnvDuration("KQ_TIMEOUT", 30*time.Second),
	}}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}
