package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Email      EmailConfig
	Cloudinary CloudinaryConfig
	Stripe     StripeConfig
	Payments   PaymentsConfig
	QR         QRConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	PublicBaseURL string // used to build links in emails and QR codes
	CORSOrigins   []string
}

type DatabaseConfig struct {
	Driver       string // "postgres" or "sqlite"
	SQLiteDSN    string
	DSN          string // takes precedence over the discrete fields
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
	Enabled     bool
}

type AuthConfig struct {
	JWTSecret    string
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool
	OIDCIssuer   string // optional; enables SSO bearer tokens
	ResetTTL     time.Duration
}

type EmailConfig struct {
	APIURL   string
	APIKey   string
	From     string
	FromName string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type PaymentsConfig struct {
	PlatformFeePercent float64
}

type QRConfig struct {
	Secret string
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", ":8080"),
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			SQLiteDSN:    getEnv("SQLITE_DSN", "file:venuly.db?cache=shared"),
			DSN:          getEnv("POSTGRES_DSN", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "venuly"),
			Password:     getEnv("DB_PASSWORD", "venuly"),
			Database:     getEnv("DB_NAME", "venuly"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:     getEnv("KAFKA_GROUP_ID", "venuly-notifier"),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "venuly"),
			Enabled:     getEnvBool("KAFKA_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			SessionTTL:   time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
			CookieName:   getEnv("SESSION_COOKIE_NAME", "venuly_session"),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			ResetTTL:     time.Hour,
		},
		Email: EmailConfig{
			APIURL:   getEnv("EMAIL_API_URL", "https://api.zeptomail.com/v1.1/email"),
			APIKey:   getEnv("EMAIL_API_KEY", ""),
			From:     getEnv("EMAIL_FROM", "noreply@venuly.app"),
			FromName: getEnv("EMAIL_FROM_NAME", "Venuly"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},
		Payments: PaymentsConfig{
			PlatformFeePercent: getEnvFloat("PLATFORM_FEE_PERCENT", 10),
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvInt("AUTH_RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
	}
}

// PostgresDSN returns the configured DSN, or builds one from the discrete fields.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// Validate reports settings the API cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite")
	}
	if c.Payments.PlatformFeePercent < 0 || c.Payments.PlatformFeePercent >= 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be in [0, 100)")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
