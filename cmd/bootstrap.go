package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/cache"
	"github.com/vibast-solutions/ms-go-novapay/app/events"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
	"github.com/vibast-solutions/ms-go-novapay/app/repository/memory"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/config"
	"golang.org/x/crypto/bcrypt"
)

// application holds the wired services shared by every command.
type application struct {
	cfg         *config.Config
	repos       service.Repositories
	flows       *service.FlowService
	admin       *service.AdminService
	auth        *service.AuthService
	idempotency *service.IdempotencyService
	webhooks    *service.WebhookDispatcher
	events      *service.EventRelay
	closers     []func() error
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustBootstrap() *application {
	cfg := mustLoadConfig()
	app := &application{cfg: cfg}

	repos, closeStorage := mustOpenStorage(cfg)
	app.repos = repos
	app.closers = append(app.closers, closeStorage)

	ledger := service.NewLedger(repos)
	outbox := service.NewOutbox(repos)
	app.flows = service.NewFlowService(repos, ledger, outbox, provider.NewClosedLoopNetwork(repos.Cards), cfg.Flows)
	app.admin = service.NewAdminService(repos, ledger, cfg.Flows, bcrypt.DefaultCost)
	app.auth = service.NewAuthService(repos)
	app.webhooks = service.NewWebhookDispatcher(repos, nil, cfg.Webhooks)

	if cfg.Redis.Enabled() {
		client := mustConnectRedis(cfg.Redis)
		app.closers = append(app.closers, client.Close)
		app.idempotency = service.NewIdempotencyService(repos, cache.NewResponseCache(client), cfg.Idempotency)
	} else {
		app.idempotency = service.NewIdempotencyService(repos, nil, cfg.Idempotency)
	}

	if cfg.Kafka.Enabled() {
		publisher := events.NewPublisher(cfg.Kafka)
		app.closers = append(app.closers, publisher.Close)
		app.events = service.NewEventRelay(repos, publisher)
	} else {
		app.events = service.NewEventRelay(repos, nil)
	}

	return app
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to close resource")
		}
	}
}

func mustOpenStorage(cfg *config.Config) (service.Repositories, func() error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logrus.Warn("Using in-memory storage; state is lost on exit")
		return memoryRepositories(memory.NewStore()), func() error { return nil }
	}

	db := mustOpenMySQL(cfg.MySQL)
	return mysqlRepositories(db), db.Close
}

func mustOpenMySQL(cfg config.MySQLConfig) *sql.DB {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustConnectRedis(cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}
	return client
}

func mysqlRepositories(db *sql.DB) service.Repositories {
	return service.Repositories{
		Tx:                repository.NewTransactor(db),
		Flows:             repository.NewFlowRepository(db),
		Balances:          repository.NewBalanceRepository(db),
		Ledger:            repository.NewLedgerRepository(db),
		Idempotency:       repository.NewIdempotencyRepository(db),
		Accounts:          repository.NewAccountRepository(db),
		Cards:             repository.NewCardRepository(db),
		Merchants:         repository.NewMerchantRepository(db),
		WebhookDeliveries: repository.NewWebhookDeliveryRepository(db),
		FlowEvents:        repository.NewFlowEventRepository(db),
	}
}

func memoryRepositories(store *memory.Store) service.Repositories {
	return service.Repositories{
		Tx:                store,
		Flows:             store.Flows(),
		Balances:          store.Balances(),
		Ledger:            store.Ledger(),
		Idempotency:       store.Idempotency(),
		Accounts:          store.Accounts(),
		Cards:             store.Cards(),
		Merchants:         store.Merchants(),
		WebhookDeliveries: store.WebhookDeliveries(),
		FlowEvents:        store.FlowEvents(),
	}
}
