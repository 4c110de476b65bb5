package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// HTTP server configuration
	Server ServerConfig

	// Token and 2FA configuration
	Auth AuthConfig

	// Decision approval configuration
	Decisions DecisionsConfig

	// Queue dashboard configuration
	Monitor MonitorConfig

	// Outgoing email (verification links)
	Mail MailConfig

	// Logging Configuration
	Logging LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string // sqlite path, or postgres:// URL
}

// IsPostgres reports whether the database URL points at PostgreSQL
func (d DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://")
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string // Redis address (host:port)
	Password string
	DB       int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AuthConfig holds JWT and TOTP settings
type AuthConfig struct {
	JWTSecret       string // empty = generated on first boot and persisted
	TokenExpiration time.Duration
	TOTPIssuer      string
}

// DecisionsConfig holds decision approval settings
type DecisionsConfig struct {
	DefaultAutoApprove time.Duration
}

// MonitorConfig holds the asynqmon dashboard settings
type MonitorConfig struct {
	Port     string
	RootPath string
}

// MailConfig holds SMTP settings. An empty Host logs messages instead of sending them.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// PublicURL is the externally reachable API base used in emailed links
	PublicURL       string
	VerificationTTL time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// Database URL - default to a local sqlite file
	dbURL := getEnv("DATABASE_URL", "morningai.sqlite")

	// Redis address - default to localhost:6379, allow override for dev/docker
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")

	tokenHours := getEnvInt("JWT_EXPIRATION_HOURS", 24)
	autoApproveSeconds := getEnvInt("DECISION_AUTO_APPROVE_SECONDS", 300)
	port := getEnv("SERVER_PORT", "8080")

	var origins []string
	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return &Config{
		Database: DatabaseConfig{
			URL: dbURL,
		},
		Redis: RedisConfig{
			Address:  redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           port,
			AllowedOrigins: origins,
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			TokenExpiration: time.Duration(tokenHours) * time.Hour,
			TOTPIssuer:      getEnv("TOTP_ISSUER", "MorningAI"),
		},
		Decisions: DecisionsConfig{
			DefaultAutoApprove: time.Duration(autoApproveSeconds) * time.Second,
		},
		Monitor: MonitorConfig{
			Port:     getEnv("ASYNQMON_PORT", "8090"),
			RootPath: getEnv("ASYNQMON_ROOT_PATH", "/asynqmon"),
		},
		Mail: MailConfig{
			Host:            os.Getenv("SMTP_HOST"),
			Port:            getEnvInt("SMTP_PORT", 587),
			Username:        os.Getenv("SMTP_USER"),
			Password:        os.Getenv("SMTP_PASS"),
			From:            getEnv("EMAIL_FROM", "noreply@morningai.com"),
			PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
			VerificationTTL: time.Duration(getEnvInt("EMAIL_VERIFICATION_TTL_MINUTES", 60)) * time.Minute,
		},
		Logging: LoggingConfig{
			// Logging configuration - defaults suitable for production
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
