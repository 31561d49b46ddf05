// Package app wires the application together.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	energyCommands "github.com/voltahq/volta/internal/energy/application/commands"
	energyQueries "github.com/voltahq/volta/internal/energy/application/queries"
	energyServices "github.com/voltahq/volta/internal/energy/application/services"
	energyDomain "github.com/voltahq/volta/internal/energy/domain"
	energyCache "github.com/voltahq/volta/internal/energy/infrastructure/cache"
	energyPersistence "github.com/voltahq/volta/internal/energy/infrastructure/persistence"
	"github.com/voltahq/volta/internal/identity/application/auth"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	identityPersistence "github.com/voltahq/volta/internal/identity/infrastructure/persistence"
	notifApp "github.com/voltahq/volta/internal/notifications/application"
	scheduleCommands "github.com/voltahq/volta/internal/scheduling/application/commands"
	scheduleQueries "github.com/voltahq/volta/internal/scheduling/application/queries"
	scheduleServices "github.com/voltahq/volta/internal/scheduling/application/services"
	schedulingDomain "github.com/voltahq/volta/internal/scheduling/domain"
	schedulePersistence "github.com/voltahq/volta/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/eventbus"
	"github.com/voltahq/volta/internal/shared/infrastructure/migrations"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
	"github.com/voltahq/volta/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database (one of the two is set, per DATABASE_URL)
	DB       *pgxpool.Pool
	SQLiteDB *sql.DB

	// Redis
	RedisClient *redis.Client

	// Repositories
	UserRepo    identityDomain.UserRepository
	TaskRepo    schedulingDomain.TaskRepository
	ItemRepo    schedulingDomain.ScheduleItemRepository
	SampleRepo  energyDomain.SampleRepository
	PatternRepo energyDomain.PatternRepository
	OutboxRepo  outbox.Repository

	// Shared infrastructure
	UnitOfWork     sharedApplication.UnitOfWork
	EventPublisher eventbus.Publisher
	UserLocks      *userlock.Map
	Tokens         *auth.TokenService

	// Domain services
	Substrate  *energyServices.Substrate
	Engine     *scheduleServices.Engine
	Cascade    *scheduleServices.Cascade
	Reconciler *scheduleServices.Reconciler
	Dispatcher *notifApp.Dispatcher
	Seeder     *energyCommands.Seeder

	// Identity handlers
	RegisterUserHandler        *identityCommands.RegisterUserHandler
	LoginHandler               *identityCommands.LoginHandler
	RefreshHandler             *identityCommands.RefreshHandler
	UpdateSleepScheduleHandler *identityCommands.UpdateSleepScheduleHandler

	// Scheduling handlers
	CreateTaskHandler         *scheduleCommands.CreateTaskHandler
	UpdateTaskHandler         *scheduleCommands.UpdateTaskHandler
	DeleteTaskHandler         *scheduleCommands.DeleteTaskHandler
	RescheduleTaskHandler     *scheduleCommands.RescheduleTaskHandler
	AddScheduleItemHandler    *scheduleCommands.AddScheduleItemHandler
	RemoveScheduleItemHandler *scheduleCommands.RemoveScheduleItemHandler
	DeadlineSweeper           *scheduleCommands.DeadlineSweeper
	ListTasksHandler          *scheduleQueries.ListTasksHandler
	GetTaskHandler            *scheduleQueries.GetTaskHandler
	ListScheduleHandler       *scheduleQueries.ListScheduleHandler

	// Energy handlers
	RecordSampleHandler   *energyCommands.RecordSampleHandler
	UpdatePatternsHandler *energyCommands.UpdatePatternsHandler
	DayForecastHandler    *energyQueries.GetDayForecastHandler
	PatternsHandler       *energyQueries.GetPatternsHandler

	// Outbox
	OutboxProcessor *outbox.Processor
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Logger:    logger,
		UserLocks: userlock.NewMap(),
	}

	if err := c.connectDatabase(ctx); err != nil {
		return nil, err
	}

	// Redis is optional: without it pattern reads skip the cache tier.
	var patternCache energyServices.PatternCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to connect to Redis: %w", err)
			}
			logger.Warn("Redis not available, pattern cache disabled", "error", err)
		} else {
			c.RedisClient = client
			patternCache = energyCache.NewRedisPatternCache(client)
			logger.Info("connected to Redis")
		}
	}

	// Event publisher with a noop fallback for development
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = publisher
	}

	c.Tokens = auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	c.Dispatcher = notifApp.NewDispatcher(c.OutboxRepo)

	// Energy substrate and handlers
	c.Substrate = energyServices.NewSubstrate(c.SampleRepo, c.PatternRepo, patternCache, logger)
	c.Seeder = energyCommands.NewSeeder(c.SampleRepo, c.PatternRepo, c.OutboxRepo, patternCache, c.UnitOfWork, logger)
	c.RecordSampleHandler = energyCommands.NewRecordSampleHandler(
		c.UserRepo, c.SampleRepo, c.PatternRepo, c.OutboxRepo, patternCache, c.UnitOfWork, c.UserLocks, logger)
	c.UpdatePatternsHandler = energyCommands.NewUpdatePatternsHandler(
		c.UserRepo, c.SampleRepo, c.PatternRepo, c.OutboxRepo, patternCache, c.UnitOfWork, c.UserLocks, logger)
	c.DayForecastHandler = energyQueries.NewGetDayForecastHandler(c.SampleRepo)
	c.PatternsHandler = energyQueries.NewGetPatternsHandler(c.PatternRepo)

	// Decision engine and cascade
	builder := scheduleServices.NewContextBuilder(c.TaskRepo, c.ItemRepo, c.Substrate)
	c.Engine = scheduleServices.NewEngine(builder, scheduleServices.NewSlotPipeline(), logger)
	c.Cascade = scheduleServices.NewCascade(c.Engine, c.TaskRepo, c.ItemRepo, c.OutboxRepo, logger)
	c.Reconciler = scheduleServices.NewReconciler(c.TaskRepo, c.ItemRepo, logger)

	// Identity handlers
	c.RegisterUserHandler = identityCommands.NewRegisterUserHandler(c.UserRepo, c.Tokens, logger)
	c.LoginHandler = identityCommands.NewLoginHandler(c.UserRepo, c.Tokens, logger)
	c.RefreshHandler = identityCommands.NewRefreshHandler(c.UserRepo, c.Tokens)
	c.UpdateSleepScheduleHandler = identityCommands.NewUpdateSleepScheduleHandler(c.UserRepo, c.Seeder, c.UserLocks, logger)

	// Scheduling handlers
	c.CreateTaskHandler = scheduleCommands.NewCreateTaskHandler(
		c.UserRepo, c.TaskRepo, c.ItemRepo, c.Engine, c.Cascade, c.Dispatcher, c.OutboxRepo, c.UnitOfWork, c.UserLocks, logger)
	c.UpdateTaskHandler = scheduleCommands.NewUpdateTaskHandler(
		c.UserRepo, c.TaskRepo, c.ItemRepo, c.Engine, c.Cascade, c.Dispatcher, c.OutboxRepo, c.UnitOfWork, c.UserLocks, logger)
	c.RescheduleTaskHandler = scheduleCommands.NewRescheduleTaskHandler(
		c.UserRepo, c.TaskRepo, c.ItemRepo, c.Engine, c.Cascade, c.Dispatcher, c.OutboxRepo, c.UnitOfWork, c.UserLocks, logger)
	c.DeleteTaskHandler = scheduleCommands.NewDeleteTaskHandler(
		c.TaskRepo, c.ItemRepo, c.OutboxRepo, c.UnitOfWork, c.UserLocks, logger)
	c.AddScheduleItemHandler = scheduleCommands.NewAddScheduleItemHandler(
		c.UserRepo, c.TaskRepo, c.ItemRepo, c.Cascade, c.Dispatcher, c.UnitOfWork, c.UserLocks, logger)
	c.RemoveScheduleItemHandler = scheduleCommands.NewRemoveScheduleItemHandler(
		c.UserRepo, c.TaskRepo, c.ItemRepo, c.Engine, c.Dispatcher, c.UnitOfWork, c.UserLocks, logger)
	c.DeadlineSweeper = scheduleCommands.NewDeadlineSweeper(c.TaskRepo, c.Dispatcher, c.UnitOfWork, logger)
	c.ListTasksHandler = scheduleQueries.NewListTasksHandler(c.TaskRepo)
	c.GetTaskHandler = scheduleQueries.NewGetTaskHandler(c.TaskRepo)
	c.ListScheduleHandler = scheduleQueries.NewListScheduleHandler(c.ItemRepo)

	// Outbox processor
	processorCfg := outbox.DefaultProcessorConfig()
	processorCfg.PollInterval = cfg.OutboxPollInterval
	processorCfg.BatchSize = cfg.OutboxBatchSize
	processorCfg.MaxRetries = cfg.OutboxMaxRetries
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorCfg, logger)

	return c, nil
}

// connectDatabase opens the configured backend, runs migrations, and
// builds the repositories for it.
func (c *Container) connectDatabase(ctx context.Context) error {
	cfg := c.Config

	if cfg.UsesPostgres() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.DB = pool
		c.Logger.Info("connected to PostgreSQL")

		c.UserRepo = identityPersistence.NewPostgresUserRepository(pool)
		c.TaskRepo = schedulePersistence.NewPostgresTaskRepository(pool)
		c.ItemRepo = schedulePersistence.NewPostgresScheduleItemRepository(pool)
		c.SampleRepo = energyPersistence.NewPostgresSampleRepository(pool)
		c.PatternRepo = energyPersistence.NewPostgresPatternRepository(pool)
		c.OutboxRepo = outbox.NewPostgresRepository(pool)
		c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)
		return nil
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	c.SQLiteDB = db
	c.Logger.Info("opened SQLite database", "path", cfg.SQLitePath)

	c.UserRepo = identityPersistence.NewSQLiteUserRepository(db)
	c.TaskRepo = schedulePersistence.NewSQLiteTaskRepository(db)
	c.ItemRepo = schedulePersistence.NewSQLiteScheduleItemRepository(db)
	c.SampleRepo = energyPersistence.NewSQLiteSampleRepository(db)
	c.PatternRepo = energyPersistence.NewSQLitePatternRepository(db)
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)
	return nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		} else {
			c.Logger.Info("SQLite connection closed")
		}
	}
}
