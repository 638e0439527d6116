package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver       string // "sqlite" or "postgres"
	DBPath         string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	JWTSecret []byte
	TokenTTL  time.Duration

	CamPay CamPayConfig

	RabbitMQURL    string
	EventsExchange string
	NotifyBuffer   int

	LogLevel string
	LogFile  string

	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// CamPayConfig holds mobile-money gateway credentials
type CamPayConfig struct {
	Username string
	Password string
	Env      string
	BaseURL  string
	Currency string
	Timeout  time.Duration
}

// Load reads .env (if present) and the environment, falling back to defaults
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found – relying on env vars")
	}

	cp := CamPayConfig{
		Username: getEnv("CAMPAY_USERNAME", ""),
		Password: getEnv("CAMPAY_PASSWORD", ""),
		Env:      strings.ToUpper(getEnv("CAMPAY_ENV", "DEV")),
		BaseURL:  getEnv("CAMPAY_BASE_URL", ""),
		Currency: getEnv("PAYMENT_CURRENCY", "XAF"),
		Timeout:  getEnvDuration("CAMPAY_TIMEOUT", 30*time.Second),
	}
	if cp.BaseURL == "" {
		cp.BaseURL = "https://demo.campay.net/api"
		if cp.Env == "PROD" {
			cp.BaseURL = "https://www.campay.net/api"
		}
	}

	return Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", ""),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:         getEnv("DB_PATH", "smartbite.db"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "smartbite"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		JWTSecret:      []byte(getEnv("JWT_SECRET", "smartbite_super_secret_2024")),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		CamPay:         cp,
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "smartbite.events"),
		NotifyBuffer:   getEnvInt("NOTIFY_BUFFER", 256),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		AdminName:      getEnv("ADMIN_NAME", "SmartBite Admin"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid int %q, using %d", v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using %s", v, fallback)
		return fallback
	}
	return d
}
