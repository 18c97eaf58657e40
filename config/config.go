package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageDriverMySQL  = "mysql"
	StorageDriverMemory = "memory"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Storage           StorageConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Flows             FlowsConfig
	Idempotency       IdempotencyConfig
	Webhooks          WebhooksConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName     string
	APIKey          string
	CheckoutBaseURL string
}

type ServerConfig struct {
	Host string
	Port string
}

type StorageConfig struct {
	Driver string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type FlowsConfig struct {
	FeeRate        decimal.Decimal
	Currencies     []string
	CheckoutTTL    time.Duration
	HoldTTL        time.Duration
	RequestTimeout time.Duration
}

type IdempotencyConfig struct {
	TTL          time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
	LockTimeout  time.Duration
}

type WebhooksConfig struct {
	MaxAttempts      int32
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	HTTPTimeout      time.Duration
}

type JobsConfig struct {
	BatchSize                int32
	Embedded                 bool
	WebhookDispatchInterval  time.Duration
	ExpireHeldInterval       time.Duration
	EventsPublishInterval    time.Duration
	IdempotencyPurgeInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMySQL))
	if driver != StorageDriverMySQL && driver != StorageDriverMemory {
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", driver)
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if driver == StorageDriverMySQL && mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	feeRate, err := decimal.NewFromString(getEnv("FLOWS_FEE_RATE", "0.025"))
	if err != nil {
		return nil, fmt.Errorf("invalid FLOWS_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New("FLOWS_FEE_RATE must be in [0, 1)")
	}

	return &Config{
		App: AppConfig{
			ServiceName:     getEnv("APP_SERVICE_NAME", "novapay-service"),
			APIKey:          getEnv("APP_API_KEY", ""),
			CheckoutBaseURL: strings.TrimRight(getEnv("APP_CHECKOUT_BASE_URL", "http://localhost:8080"), "/"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Storage: StorageConfig{
			Driver: driver,
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_FLOW_EVENTS_TOPIC", "novapay.flow.events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Flows: FlowsConfig{
			FeeRate:        feeRate,
			Currencies:     getCurrenciesEnv("FLOWS_CURRENCIES", []string{"USD", "EUR", "GBP", "CHF", "TRY"}),
			CheckoutTTL:    getMinutesEnv("FLOWS_CHECKOUT_TTL_MINUTES", 30*time.Minute),
			HoldTTL:        getMinutesEnv("FLOWS_HOLD_TTL_MINUTES", 7*24*time.Hour),
			RequestTimeout: getSecondsEnv("FLOWS_REQUEST_TIMEOUT_SECONDS", 15*time.Second),
		},
		Idempotency: IdempotencyConfig{
			TTL:          getMinutesEnv("IDEMPOTENCY_TTL_MINUTES", 24*time.Hour),
			WaitTimeout:  getMillisecondsEnv("IDEMPOTENCY_WAIT_TIMEOUT_MS", 3*time.Second),
			PollInterval: getMillisecondsEnv("IDEMPOTENCY_POLL_INTERVAL_MS", 50*time.Millisecond),
			LockTimeout:  getSecondsEnv("IDEMPOTENCY_LOCK_TIMEOUT_SECONDS", time.Minute),
		},
		Webhooks: WebhooksConfig{
			MaxAttempts:      int32(getIntEnv("WEBHOOKS_MAX_ATTEMPTS", 10)),
			RetryInterval:    getSecondsEnv("WEBHOOKS_RETRY_INTERVAL_SECONDS", 30*time.Second),
			MaxRetryInterval: getMinutesEnv("WEBHOOKS_MAX_RETRY_INTERVAL_MINUTES", time.Hour),
			HTTPTimeout:      getSecondsEnv("WEBHOOKS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Jobs: JobsConfig{
			BatchSize:                int32(getIntEnv("JOBS_BATCH_SIZE", 100)),
			Embedded:                 getBoolEnv("JOBS_EMBEDDED", false),
			WebhookDispatchInterval:  getSecondsEnv("JOBS_WEBHOOK_DISPATCH_INTERVAL_SECONDS", 15*time.Second),
			ExpireHeldInterval:       getMinutesEnv("JOBS_EXPIRE_HELD_INTERVAL_MINUTES", 5*time.Minute),
			EventsPublishInterval:    getSecondsEnv("JOBS_EVENTS_PUBLISH_INTERVAL_SECONDS", 10*time.Second),
			IdempotencyPurgeInterval: getMinutesEnv("JOBS_IDEMPOTENCY_PURGE_INTERVAL_MINUTES", time.Hour),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getCurrenciesEnv(key string, defaultValue []string) []string {
	items := getListEnv(key)
	if len(items) == 0 {
		return defaultValue
	}
	for i := range items {
		items[i] = strings.ToUpper(items[i])
	}
	return items
}
