// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ServiceName    = "catalog-orders"
	ServiceVersion = "0.1.0"
)

// Storage drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	StorageDriver   string
	MySQLDSN        string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	RedisAddr       string
	RedisPoolSize   int
	KafkaBroker     string
	KafkaTopic      string
	OtelEndpoint    string
	TxTimeout       time.Duration
	ShutdownTimeout time.Duration
	ProductCacheTTL time.Duration
	IdempotencyTTL  time.Duration
	LogLevel        string
	LogFormat       string
}

// loader collects the first parse error so Load can report it once.
type loader struct {
	err error
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (l *loader) atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (l *loader) durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

// Load reads configuration from the environment, applying defaults for
// unset variables. Malformed values are an error.
func Load() (*Config, error) {
	var l loader
	cfg := &Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		StorageDriver:   getenv("STORAGE_DRIVER", DriverMySQL),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/catalog?parseTime=true"),
		DBMaxOpenConns:  l.atoienv("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:  l.atoienv("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime:  l.durenv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPoolSize:   l.atoienv("REDIS_POOL_SIZE", 100),
		KafkaBroker:     getenv("KAFKA_BROKER", ""),
		KafkaTopic:      getenv("KAFKA_TOPIC", "order-events"),
		OtelEndpoint:    getenv("OTEL_ENDPOINT", ""),
		TxTimeout:       l.durenv("TX_TIMEOUT", 5*time.Second),
		ShutdownTimeout: l.durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		ProductCacheTTL: l.durenv("PRODUCT_CACHE_TTL", 5*time.Minute),
		IdempotencyTTL:  l.durenv("IDEMPOTENCY_TTL", 24*time.Hour),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}
	if l.err != nil {
		return nil, l.err
	}

	switch cfg.StorageDriver {
	case DriverMySQL, DriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", cfg.StorageDriver)
	}
	if cfg.TxTimeout <= 0 {
		return nil, fmt.Errorf("TX_TIMEOUT must be positive")
	}
	return cfg, nil
}
