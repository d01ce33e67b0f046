package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	RedisURL string

	FirebaseProjectID string
	FirebaseJWKSURL   string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	RoomCacheTTL      time.Duration
	MessageCooldown   time.Duration
	ReconcileInterval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CloudinaryConfigured reports whether uploads can be served, either from
// explicit credentials or from CLOUDINARY_URL.
func (c *Config) CloudinaryConfigured() bool {
	if c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != "" {
		return true
	}
	return os.Getenv("CLOUDINARY_URL") != ""
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASS"),
		DBName:      getEnv("DB_NAME", "earnbuddy"),
		DBPort:      getEnv("DB_PORT", "5432"),

		RedisURL: os.Getenv("REDIS_URL"),

		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseJWKSURL:   os.Getenv("FIREBASE_JWKS_URL"),

		MeiliSearchHost: normalizeMeiliHost(os.Getenv("MEILISEARCH_HOST")),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "earnbuddy"),
	}

	if cfg.FirebaseProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}

	var err error
	cfg.RoomCacheTTL, err = parseDuration(getEnv("ROOM_CACHE_TTL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROOM_CACHE_TTL: %w", err)
	}
	cfg.MessageCooldown, err = parseDuration(getEnv("MESSAGE_COOLDOWN", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MESSAGE_COOLDOWN: %w", err)
	}
	cfg.ReconcileInterval, err = parseDuration(getEnv("RECONCILE_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeMeiliHost accepts a bare hostname and expands it to the default port.
func normalizeMeiliHost(host string) string {
	if host == "" || strings.HasPrefix(host, "http") {
		return host
	}
	return "http://" + host + ":7700"
}
