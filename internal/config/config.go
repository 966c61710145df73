package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Scraper  ScraperConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
	// LegacyStatus answers every API failure with HTTP 200 and a success:false body
	LegacyStatus bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// AutoMigrate applies pending migrations at startup
	AutoMigrate bool
}

// RedisConfig holds read-cache configuration. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds Kafka configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Consume bool
}

// ScraperConfig holds source and scheduling settings for the scrape pipeline
type ScraperConfig struct {
	SourceURL    string
	SourceName   string
	DateSelector string
	UserAgent    string
	Timeout      time.Duration
	RateLimit    float64
	MaxRetries   uint64
	Interval     time.Duration
	Location     string
}

// LoggingConfig controls the application logger
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			LegacyStatus: getEnvBool("API_LEGACY_STATUS", false),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "nse"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "nse-price-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "nse-market-service"),
			Consume: getEnvBool("KAFKA_CONSUME", false),
		},
		Scraper: ScraperConfig{
			SourceURL:    getEnv("SCRAPE_SOURCE_URL", "https://live.mystocks.co.ke/price_list/"),
			SourceName:   getEnv("SCRAPE_SOURCE_NAME", "mystocks.co.ke"),
			DateSelector: getEnv("SCRAPE_DATE_SELECTOR", ""),
			UserAgent:    getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (compatible; nse-market-service/1.0)"),
			Timeout:      getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			RateLimit:    getEnvFloat("SCRAPE_RATE_LIMIT", 1),
			MaxRetries:   uint64(getEnvInt("SCRAPE_MAX_RETRIES", 2)),
			Interval:     getEnvDuration("SCRAPE_INTERVAL", 0),
			Location:     getEnv("SCRAPE_TIMEZONE", "Africa/Nairobi"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Enabled reports whether Kafka brokers are configured
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// TimeLocation resolves the scraper's trading timezone, falling back to UTC
func (s *ScraperConfig) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
