package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Ledger    LedgerConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig with no brokers disables both the order listener and event publishing.
type KafkaConfig struct {
	Brokers        []string
	OrdersTopic    string
	EventsTopic    string
	GroupID        string
	PublishTimeout time.Duration
}

type LedgerConfig struct {
	LockBackend string // local | redis
	LockTTL     time.Duration
	CacheTTL    time.Duration
}

type SchedulerConfig struct {
	Interval           time.Duration
	BatchSize          int
	ClaimTimeout       time.Duration
	ReconcileInterval  time.Duration
	ReconcileMerchants []string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8085"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_ledger"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:    getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
			EventsTopic:    getEnv("KAFKA_TOPIC_LEDGER", "ledger.events"),
			GroupID:        getEnv("KAFKA_GROUP_LEDGER", "ledger"),
			PublishTimeout: getEnvDuration("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Ledger: LedgerConfig{
			LockBackend: getEnv("LEDGER_LOCK_BACKEND", "redis"),
			LockTTL:     getEnvDuration("LEDGER_LOCK_TTL", 5*time.Second),
			CacheTTL:    getEnvDuration("LEDGER_CACHE_TTL", 5*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Interval:           getEnvDuration("SCHEDULER_INTERVAL", 30*time.Second),
			BatchSize:          getEnvInt("SCHEDULER_BATCH_SIZE", 100),
			ClaimTimeout:       getEnvDuration("SCHEDULER_CLAIM_TIMEOUT", 5*time.Minute),
			ReconcileInterval:  getEnvDuration("SCHEDULER_RECONCILE_INTERVAL", 0),
			ReconcileMerchants: getEnvSlice("SCHEDULER_RECONCILE_MERCHANTS", nil),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvSlice splits on commas and drops blank items, so KAFKA_BROKERS="" yields no brokers.
func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
