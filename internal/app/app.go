package app

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/config"
	"github.com/fekuna/omnipos-ledger-service/internal/event"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	pricingRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/pricing/repository"
	pricingUCPkg "github.com/fekuna/omnipos-ledger-service/internal/pricing/usecase"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	stockRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/usecase"
)

// App holds the infrastructure clients and use cases shared by the gRPC server and ledgerctl.
type App struct {
	DB       *sqlx.DB
	Redis    *cache.RedisClient
	Producer *broker.KafkaProducer

	Stock   stock.UseCase
	Pricing pricing.UseCase

	closers []func() error
}

func NewLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}
	return logger.NewZapLogger(logConfig)
}

func OpenDB(cfg *config.Config) (*sqlx.DB, error) {
	return postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
}

// New connects to PostgreSQL, Redis and (when brokers are configured) Kafka, then builds the use cases.
// On error everything opened so far is closed again.
func New(cfg *config.Config, log logger.ZapLogger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	a.DB, err = OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)
	log.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	a.Redis, err = cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, a.Redis.Close)
	log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	locker, err := NewLocker(cfg.Ledger, a.Redis)
	if err != nil {
		return nil, err
	}

	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		a.Producer = broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventsTopic,
		})
		a.closers = append(a.closers, a.Producer.Close)
		publisher = event.NewKafkaPublisher(a.Producer, cfg.Kafka.PublishTimeout)
		log.Info("Kafka producer ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.EventsTopic))
	} else {
		log.Warn("No Kafka brokers configured, ledger events are not published")
	}

	a.Stock = stockUCPkg.NewStockUseCase(
		stockRepoPkg.NewPGRepository(a.DB), locker, a.Redis, publisher, log,
		stockUCPkg.WithCacheTTL(cfg.Ledger.CacheTTL),
	)
	a.Pricing = pricingUCPkg.NewPricingUseCase(
		pricingRepoPkg.NewPGRepository(a.DB), locker, publisher, log,
		pricingUCPkg.WithSweep(cfg.Scheduler.BatchSize, cfg.Scheduler.ClaimTimeout),
	)
	return a, nil
}

func NewLocker(cfg config.LedgerConfig, client lock.LockClient) (lock.Locker, error) {
	switch cfg.LockBackend {
	case "", "redis":
		return lock.NewRedisLocker(client, lock.RedisLockerConfig{TTL: cfg.LockTTL}), nil
	case "local":
		return lock.NewLocalLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// Close releases clients in reverse order of opening.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
