package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	BaseURL       string
	AuthJWTSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Stripe   StripeConfig
	Pricing  PricingDefaults
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	SMTP     SMTPConfig

	AccountRefreshCron string
}

type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	ProviderTimeout time.Duration
	MaxRetries      int
}

// PricingDefaults seeds the pricing holder when pricing.yml is absent.
type PricingDefaults struct {
	PlatformCommissionPercent float64
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	CheckoutRate  float64
	CheckoutBurst int
}

type RabbitMQConfig struct {
	URL         string
	Exchange    string
	DialTimeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "makerhub"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		BaseURL:       strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "makerhub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Stripe: StripeConfig{
			SecretKey:       strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:   strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			ProviderTimeout: time.Duration(getenvInt64("PROVIDER_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxRetries:      int(getenvInt64("PROVIDER_MAX_RETRIES", 3)),
		},
		Pricing: PricingDefaults{
			PlatformCommissionPercent: getenvFloat("PLATFORM_COMMISSION_PERCENT", 10),
		},
		Redis: RedisConfig{
			Addr:          strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password:      getenv("REDIS_PASSWORD", ""),
			DB:            int(getenvInt64("REDIS_DB", 0)),
			CheckoutRate:  getenvFloat("CHECKOUT_RATE_PER_SECOND", 0.2),
			CheckoutBurst: int(getenvInt64("CHECKOUT_BURST", 5)),
		},
		RabbitMQ: RabbitMQConfig{
			URL:         strings.TrimSpace(getenv("RABBITMQ_URL", "")),
			Exchange:    getenv("RABBITMQ_EXCHANGE", "makerhub.events"),
			DialTimeout: time.Duration(getenvInt64("RABBITMQ_DIAL_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:     getenv("SMTP_PORT", "587"),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "MakerHub <no-reply@makerhub.local>"),
		},
		AccountRefreshCron: getenv("ACCOUNT_REFRESH_CRON", "*/15 * * * *"),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
