package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Stripe     StripeConfig
	Brevo      BrevoConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Site       SiteConfig
	Admin      AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	SQLitePath      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type BrevoConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type JWTConfig struct {
	Secret         string
	AccessExpiry   time.Duration
	IdentityExpiry time.Duration
	Issuer         string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// SiteConfig describes the public site the checkout flow redirects back to.
type SiteConfig struct {
	Name    string
	BaseURL string
}

type AdminConfig struct {
	Email    string
	Password string
}

func Load() *Config {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", ""),
			SQLitePath:      getEnv("SQLITE_PATH", "reportgate.db"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Brevo: BrevoConfig{
			APIKey:    getEnv("BREVO_API_KEY", ""),
			FromEmail: getEnv("BREVO_FROM_EMAIL", "noreply@reportgate.local"),
			FromName:  getEnv("BREVO_FROM_NAME", "Report Gate"),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", "change-me-in-production"),
			AccessExpiry:   getEnvDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
			IdentityExpiry: getEnvDuration("JWT_IDENTITY_EXPIRY", 365*24*time.Hour),
			Issuer:         getEnv("JWT_ISSUER", "reportgate"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Site: SiteConfig{
			Name:    getEnv("SITE_NAME", "Report Gate"),
			BaseURL: getEnv("SITE_BASE_URL", "http://localhost:8080"),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@reportgate.local"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
