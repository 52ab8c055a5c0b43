package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Host string
		Port string
	}

	Auth struct {
		JWTSecret string
		Issuer    string
	}

	// Transitions selects where block/unmatch/report run:
	// "embedded" (gorm transaction) or "remote" (hosted stored procedures).
	Transitions struct {
		Backend   string
		RemoteURL string
		GuardTTL  time.Duration
	}

	Notify struct {
		Ledger          string
		LikeWindow      time.Duration
		SMTPHost        string
		SMTPPort        int
		SMTPUser        string
		SMTPPass        string
		SMTPFrom        string
		SMTPFromName    string
		FCMCredentials  string
		DispatchTimeout time.Duration
		AppURL          string
	}

	Payment struct {
		StripeKey     string
		StripeBaseURL string
		Timeout       time.Duration
	}

	RateLimit struct {
		SwipesPerSecond float64
		Burst           int
	}
}

func New() *Config {
	if !strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		_ = godotenv.Load() // optional .env for local
	}

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "guestmatch")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "guestmatch")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
			)
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("DB_PATH", "guestmatch.db")
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// Auth
	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.Auth.Issuer = getEnvDefault("AUTH_JWT_ISSUER", "")

	// Relationship transitions
	cfg.Transitions.Backend = strings.ToLower(getEnvDefault("TRANSITIONS_BACKEND", "embedded"))
	cfg.Transitions.RemoteURL = os.Getenv("TRANSITIONS_REMOTE_URL")
	cfg.Transitions.GuardTTL = getEnvDuration("TRANSITIONS_GUARD_TTL", 15*time.Second)

	// Notifications
	cfg.Notify.Ledger = strings.ToLower(getEnvDefault("NOTIFY_LEDGER", "db"))
	cfg.Notify.LikeWindow = getEnvDuration("NOTIFY_LIKE_WINDOW", 24*time.Hour)
	cfg.Notify.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Notify.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.Notify.SMTPUser = os.Getenv("SMTP_USER")
	cfg.Notify.SMTPPass = os.Getenv("SMTP_PASS")
	cfg.Notify.SMTPFrom = getEnvDefault("SMTP_FROM", "no-reply@guestmatch.app")
	cfg.Notify.SMTPFromName = getEnvDefault("SMTP_FROM_NAME", "Guest Match")
	cfg.Notify.FCMCredentials = os.Getenv("FIREBASE_CREDENTIALS_JSON")
	cfg.Notify.DispatchTimeout = getEnvDuration("NOTIFY_DISPATCH_TIMEOUT", 20*time.Second)
	cfg.Notify.AppURL = getEnvDefault("APP_URL", "http://localhost:3000")

	// Payments
	cfg.Payment.StripeKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Payment.StripeBaseURL = getEnvDefault("STRIPE_BASE_URL", "https://api.stripe.com")
	cfg.Payment.Timeout = getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second)

	// Rate limiting
	cfg.RateLimit.SwipesPerSecond = getEnvFloat("RATE_SWIPES_PER_SECOND", 5)
	cfg.RateLimit.Burst = getEnvInt("RATE_SWIPES_BURST", 20)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnvDefault(k, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvDefault(k, "")); err == nil && v >= 0 {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
