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

	Auth struct {
		Backend             string
		HostedAddr          string
		JWTSecret           string
		TokenTTL            time.Duration
		RequireConfirmation bool
		ReadyTimeout        time.Duration
		LoginAttempts       int
		LoginWindow         time.Duration
	}

	Likes struct {
		RateLimit  int
		RateWindow time.Duration
	}

	Storage struct {
		Driver string
		TabID  string
	}
}

// New reads the configuration from the environment. In development an optional
// .env file in the working directory is loaded first; real env vars win.
func New() *Config {
	if strings.EqualFold(getEnvDefault("APP_ENV", "production"), "development") {
		_ = godotenv.Load()
	}

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "fahrme")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		switch cfg.DB.Driver {
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("SQLITE_PATH", "fahrme.db")
		default:
			cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.User = getEnvDefault("DB_USER", "root")
			cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
			cfg.DB.Name = getEnvDefault("DB_NAME", "fahrme")

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

	// Auth
	cfg.Auth.Backend = strings.ToLower(getEnvDefault("AUTH_BACKEND", "embedded"))
	cfg.Auth.HostedAddr = getEnvDefault("AUTH_HOSTED_ADDR", cfg.GRPC.Host+":"+cfg.GRPC.Port)
	cfg.Auth.JWTSecret = getEnvDefault("AUTH_JWT_SECRET", "dev-secret-change-me")
	cfg.Auth.TokenTTL = getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour)
	cfg.Auth.RequireConfirmation = isTruthy(os.Getenv("AUTH_REQUIRE_CONFIRMATION"))
	cfg.Auth.ReadyTimeout = getEnvDuration("AUTH_READY_TIMEOUT", 1500*time.Millisecond)
	cfg.Auth.LoginAttempts = getEnvInt("AUTH_LOGIN_ATTEMPTS", 10)
	cfg.Auth.LoginWindow = getEnvDuration("AUTH_LOGIN_WINDOW", time.Minute)

	// Likes
	cfg.Likes.RateLimit = getEnvInt("LIKES_RATE_LIMIT", 30)
	cfg.Likes.RateWindow = getEnvDuration("LIKES_RATE_WINDOW", time.Minute)

	// Storage
	cfg.Storage.Driver = strings.ToLower(getEnvDefault("STORAGE_DRIVER", "redis"))
	cfg.Storage.TabID = getEnvDefault("STORAGE_TAB_ID", "")

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

func getEnvDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return d
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
