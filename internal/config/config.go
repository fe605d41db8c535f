package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PageSizes struct {
	Products    int
	Users       int
	Stock       int
	Supply      int
	Sales       int
	Reviews     int
	Newsletters int
}

type Config struct {
	ServerPort int

	BackendBaseURL string
	GatewayBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL        time.Duration
	PaymentSessionTTL time.Duration
	HTTPTimeout       time.Duration

	PaymentCountdownSeconds int
	PaymentPollInterval     time.Duration
	PaymentReapInterval     time.Duration

	Pages PageSizes
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: no .env file loaded")
	}

	config := &Config{}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.ServerPort = p
		}
	}
	if config.ServerPort == 0 {
		config.ServerPort = 8041
	}

	config.BackendBaseURL = getEnvOrDefault("THRIFT_BACKEND_URL", "http://localhost:5000/api")
	config.GatewayBaseURL = getEnvOrDefault("THRIFT_GATEWAY_URL", "http://localhost:5100")

	redisHost := getEnvOrDefault("THRIFT_REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("THRIFT_REDIS_PORT", "6379")
	config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	config.RedisPassword = os.Getenv("THRIFT_REDIS_PASSWORD")
	if db := os.Getenv("THRIFT_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.RedisDB = n
		}
	}

	config.SessionTTL = getDurationOrDefault("THRIFT_SESSION_TTL", 24*time.Hour)
	config.PaymentSessionTTL = getDurationOrDefault("THRIFT_PAYMENT_SESSION_TTL", time.Hour)
	config.HTTPTimeout = getDurationOrDefault("THRIFT_HTTP_TIMEOUT", 15*time.Second)

	config.PaymentCountdownSeconds = getIntOrDefault("THRIFT_PAYMENT_COUNTDOWN_SECONDS", 300)
	config.PaymentPollInterval = getDurationOrDefault("THRIFT_PAYMENT_POLL_INTERVAL", 5*time.Second)
	config.PaymentReapInterval = getDurationOrDefault("THRIFT_PAYMENT_REAP_INTERVAL", 10*time.Minute)

	config.Pages = PageSizes{
		Products:    9,
		Users:       10,
		Stock:       8,
		Supply:      8,
		Sales:       15,
		Reviews:     6,
		Newsletters: 10,
	}

	if config.PaymentCountdownSeconds <= 0 {
		return nil, fmt.Errorf("payment countdown must be positive, got %d", config.PaymentCountdownSeconds)
	}
	if config.PaymentPollInterval <= 0 {
		return nil, fmt.Errorf("payment poll interval must be positive, got %s", config.PaymentPollInterval)
	}
	if config.PaymentReapInterval <= 0 {
		return nil, fmt.Errorf("payment reap interval must be positive, got %s", config.PaymentReapInterval)
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
