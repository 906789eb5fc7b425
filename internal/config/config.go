package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APP_PORT        string
	LOG_LEVEL       string
	TRUSTED_PROXIES []string

	DB_DRIVER   string
	DB_DSN      string
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	TOKEN_EXPIRY_HOURS      int
	REMEMBER_ME_EXPIRY_DAYS int
	TOKEN_REFRESH_WINDOW    time.Duration
	TOKEN_STALE_DAYS        int

	GEO_LOOKUP_URL string
	GEO_TIMEOUT    time.Duration
	GEO_CACHE_TTL  time.Duration
	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	KAFKA_BROKERS     []string
	KAFKA_AUDIT_TOPIC string
	AMQP_URL          string
	AMQP_AUDIT_QUEUE  string

	ES_URL            string
	ES_USER           string
	ES_PASSWORD       string
	ES_ACTIVITY_INDEX string

	AUDIT_SIGNING_SECRET []byte
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		APP_PORT:  EnvDefault("APP_PORT", "8080"),
		LOG_LEVEL: EnvDefault("LOG_LEVEL", "info"),

		TRUSTED_PROXIES: CSV(os.Getenv("TRUSTED_PROXIES")),

		DB_DRIVER:   EnvDefault("DB_DRIVER", "postgres"),
		DB_DSN:      os.Getenv("DB_DSN"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		TOKEN_EXPIRY_HOURS:      EnvIntDefault("TOKEN_EXPIRY_HOURS", 8),
		REMEMBER_ME_EXPIRY_DAYS: EnvIntDefault("REMEMBER_ME_EXPIRY_DAYS", 30),
		TOKEN_REFRESH_WINDOW:    EnvDurationDefault("TOKEN_REFRESH_WINDOW", 30*time.Minute),
		TOKEN_STALE_DAYS:        EnvIntDefault("TOKEN_STALE_DAYS", 7),

		GEO_LOOKUP_URL: EnvDefault("GEO_LOOKUP_URL", "http://ip-api.com/json"),
		GEO_TIMEOUT:    EnvDurationDefault("GEO_TIMEOUT", time.Second),
		GEO_CACHE_TTL:  EnvDurationDefault("GEO_CACHE_TTL", 24*time.Hour),
		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       EnvIntDefault("REDIS_DB", 0),

		KAFKA_BROKERS:     CSV(os.Getenv("KAFKA_BROKERS")),
		KAFKA_AUDIT_TOPIC: EnvDefault("KAFKA_AUDIT_TOPIC", "activity_events"),
		AMQP_URL:          os.Getenv("AMQP_URL"),
		AMQP_AUDIT_QUEUE:  EnvDefault("AMQP_AUDIT_QUEUE", "activity.events"),

		ES_URL:            os.Getenv("ES_URL"),
		ES_USER:           os.Getenv("ES_USER"),
		ES_PASSWORD:       os.Getenv("ES_PASSWORD"),
		ES_ACTIVITY_INDEX: EnvDefault("ES_ACTIVITY_INDEX", "activity_logs"),

		AUDIT_SIGNING_SECRET: []byte(os.Getenv("AUDIT_SIGNING_SECRET")),
	}

	if config.GEO_TIMEOUT > 5*time.Second {
		config.GEO_TIMEOUT = 5 * time.Second
	}

	return config, nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
