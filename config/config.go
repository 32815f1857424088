package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values
type Config struct {
	AppEnv          string
	AppPort         string
	MetricsPort     string
	ShutdownTimeout time.Duration

	// MySQL
	MySQLDSN string

	// Redis
	RedisAddr   string
	RedisPwd    string
	RedisDB     int
	CachePrefix string
	CacheTTL    time.Duration

	// Kafka
	KafkaBrokers      []string
	KafkaMessageTopic string

	// JWT
	JWTSecret string

	// User directory (profile lookups for lazy user sync)
	DirectoryBaseURL string
	DirectoryTimeout time.Duration
}

// Load reads configuration from config.yaml or environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("METRICS_PORT", "9091")
	viper.SetDefault("SHUTDOWN_TIMEOUT", 10)
	viper.SetDefault("CACHE_PREFIX", "chatcore")
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("KAFKA_MESSAGE_TOPIC", "chat.message.created")
	viper.SetDefault("DIRECTORY_TIMEOUT_SECONDS", 5)

	// config.yaml is optional; env vars alone are enough in containers
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config.yaml: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:            viper.GetString("APP_ENV"),
		AppPort:           viper.GetString("APP_PORT"),
		MetricsPort:       viper.GetString("METRICS_PORT"),
		ShutdownTimeout:   viper.GetDuration("SHUTDOWN_TIMEOUT") * time.Second,
		MySQLDSN:          viper.GetString("MYSQL_DSN"),
		RedisAddr:         viper.GetString("REDIS_ADDR"),
		RedisPwd:          viper.GetString("REDIS_PASSWORD"),
		RedisDB:           viper.GetInt("REDIS_DB"),
		CachePrefix:       viper.GetString("CACHE_PREFIX"),
		CacheTTL:          viper.GetDuration("CACHE_TTL_SECONDS") * time.Second,
		KafkaBrokers:      viper.GetStringSlice("KAFKA_BROKERS"),
		KafkaMessageTopic: viper.GetString("KAFKA_MESSAGE_TOPIC"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		DirectoryBaseURL:  viper.GetString("DIRECTORY_BASE_URL"),
		DirectoryTimeout:  viper.GetDuration("DIRECTORY_TIMEOUT_SECONDS") * time.Second,
	}

	if cfg.MySQLDSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required (presence fan-out rides redis pub/sub)")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
