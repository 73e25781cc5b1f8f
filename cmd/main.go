package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/clickhouse"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/config"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/database"
	redisAdapter "github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/redis"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/telegram"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/alerts"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/analytics"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/health"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/observations"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/readiness"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/workers"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/archive"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/worker"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration and initialize logger
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Workload Analytics Engine starting...",
		zap.Int("acute_days", cfg.Engine.AcuteDays),
		zap.Int("chronic_days", cfg.Engine.ChronicDays),
	)

	// Initialize Postgres (source of record) and run migrations
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis is optional: without it subject locks are in-process only
	redisClient, err := initRedis(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize ClickHouse archive connection
	chDB, err := initClickHouse(ctx, cfg)
	if err != nil {
		logger.Warn("ClickHouse not available, analytics archive disabled", zap.Error(err))
		chDB = nil
	}
	if chDB != nil {
		defer chDB.Close()
	}

	// Archive buffer batches derived series and alert events
	var events archive.Buffer
	var archiveBuffer *archive.BufferedArchive
	if chDB != nil {
		archiveBuffer = archive.NewBufferedArchive(archive.BufferConfig{
			Writer: clickhouse.NewWriter(clickhouse.NewRepository(chDB.DB())),
		})
		events = archiveBuffer
		logger.Info("✅ analytics archive enabled (ClickHouse)")
	} else {
		logger.Warn("⚠️ analytics archive disabled - derived series are recomputed on demand only")
	}

	// Subject locks: Redlock across pods, local fallback for single pod
	var lockFactory redisAdapter.LockFactory
	if redisClient != nil {
		lockFactory = redisClient.GetLockFactory()
	} else {
		lockFactory = redisAdapter.NewLocalLockFactory()
		logger.Warn("⚠️ redis disabled - using in-process subject locks (single pod only)")
	}

	// Initialize repositories
	repo := observations.NewRepository(db.DB())
	alertStore := alerts.NewPostgresStore(db.DB())

	// Metric catalog comes from the database when populated
	cat, err := initCatalog(ctx, repo)
	if err != nil {
		return err
	}

	scorer, err := readiness.NewScorer(cat, readiness.Config{
		BaselineDays: cfg.Readiness.BaselineDays,
	})
	if err != nil {
		return fmt.Errorf("failed to create readiness scorer: %w", err)
	}

	// Initialize Telegram notifier for alert lifecycle messages
	notifier := initTelegram(cfg)

	policies := alerts.Configured(cfg.Alerts.FatigueThreshold, cfg.Alerts.FatigueDays, cfg.Alerts.OutlierZScore)
	engine := alerts.NewEngine(alertStore, lockFactory, events, notifier)

	service, err := analytics.NewService(repo, cat, scorer, engine, policies, cfg.Engine.AcuteDays, cfg.Engine.ChronicDays)
	if err != nil {
		return fmt.Errorf("failed to create analytics service: %w", err)
	}

	// Start the nightly evaluation worker
	var cache workers.Cache
	if redisClient != nil {
		cache = redisClient
	}
	workerGroup := startWorkers(ctx, cfg, service, events, cache)

	// Start health server
	healthServer := startHealthServer(cfg, db, chDB, redisClient)

	// Wait for shutdown signal
	<-ctx.Done()

	// Perform graceful shutdown
	return performGracefulShutdown(healthServer, workerGroup, archiveBuffer, db, chDB, redisClient)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initRedis initializes Redis client with Redlock support
func initRedis(cfg *config.Config) (*redisAdapter.Client, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled in config")
		return nil, nil
	}

	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Test connection
	if err := redisClient.Health(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}

	logger.Info("redis connection established (redlock)",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port),
	)

	return redisClient, nil
}

// initClickHouse initializes ClickHouse connection and ensures the
// archive schema exists
func initClickHouse(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, fmt.Errorf("ClickHouse disabled in config")
	}

	dsn := cfg.ClickHouse.GetDSN()

	ch, err := database.NewClickHouse(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := ch.DB().Ping(); err != nil {
		ch.Close()
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	if err := clickhouse.NewRepository(ch.DB()).EnsureSchema(ctx); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to ensure archive schema: %w", err)
	}

	logger.Info("ClickHouse connection established",
		zap.String("host", cfg.ClickHouse.Host),
		zap.String("database", cfg.ClickHouse.Database),
	)

	return ch, nil
}

// initCatalog loads the metric catalog from Postgres, falling back to
// the built-in wellness set when the table is empty
func initCatalog(ctx context.Context, repo *observations.Repository) (*catalog.Catalog, error) {
	specs, err := repo.MetricSpecs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric catalog: %w", err)
	}

	if len(specs) == 0 {
		logger.Info("metric catalog table is empty, using built-in catalog")
		return catalog.Default(), nil
	}

	cat, err := catalog.New(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid metric catalog: %w", err)
	}

	logger.Info("metric catalog loaded from database",
		zap.Int("metrics", len(specs)),
	)

	return cat, nil
}

// initTelegram initializes Telegram notifier
func initTelegram(cfg *config.Config) alerts.Notifier {
	if cfg.Telegram.BotToken == "" {
		logger.Info("telegram notifier disabled (no token provided)")
		return nil
	}

	templateManager, err := telegram.NewTemplateManager("./templates/telegram")
	if err != nil {
		logger.Warn("failed to load telegram templates", zap.Error(err))
		return nil
	}

	notifier, err := telegram.NewNotifier(&cfg.Telegram, templateManager)
	if err != nil {
		logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		return nil
	}

	logger.Info("📱 Telegram notifier initialized")
	return notifier
}

// startWorkers starts the nightly evaluation worker group
func startWorkers(ctx context.Context, cfg *config.Config, service *analytics.Service, events archive.Buffer, cache workers.Cache) *worker.WorkerGroup {
	evaluation := workers.NewEvaluationWorker(service, events, cache, cfg.Workers.Concurrency)

	group := worker.NewWorkerGroup(ctx)
	group.AddDaily(evaluation, time.Duration(cfg.Workers.EvaluationHour)*time.Hour)
	group.Start()

	logger.Info("nightly evaluation scheduled",
		zap.Int("hour_utc", cfg.Workers.EvaluationHour),
		zap.Int("concurrency", cfg.Workers.Concurrency),
	)

	return group
}

// startHealthServer initializes and starts health check server for K8s probes
func startHealthServer(cfg *config.Config, db *database.DB, chDB *database.DB, redisClient *redisAdapter.Client) *health.Server {
	healthServer := health.NewServer(cfg.Health.Port, db, chDB, redisClient)

	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	logger.Info("🚀 Workload Analytics Engine ready!",
		zap.String("health_port", cfg.Health.Port),
	)

	// Mark service as ready after initialization
	healthServer.SetReady(true)

	return healthServer
}

// performGracefulShutdown handles graceful shutdown of all components
func performGracefulShutdown(healthServer *health.Server, workerGroup *worker.WorkerGroup, archiveBuffer *archive.BufferedArchive, db *database.DB, chDB *database.DB, redisClient *redisAdapter.Client) error {
	logger.Info("🛑 Shutdown signal received, starting graceful shutdown...")

	// Mark service as not ready (stop accepting new traffic)
	healthServer.SetReady(false)

	// Create shutdown context with timeout (K8s gives 30s terminationGracePeriodSeconds)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	// Stop workers first so no new archive records are produced
	workerGroup.Stop(10 * time.Second)

	// Flush remaining archive records
	if archiveBuffer != nil {
		logger.Info("flushing analytics archive...")
		if err := archiveBuffer.Close(shutdownCtx); err != nil {
			logger.Error("archive buffer close error", zap.Error(err))
		}
	}

	// Close database connection
	logger.Info("closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error("database close error", zap.Error(err))
	}

	// Close ClickHouse connection
	if chDB != nil {
		logger.Info("closing clickhouse connection...")
		if err := chDB.Close(); err != nil {
			logger.Error("clickhouse close error", zap.Error(err))
		}
	}

	// Close redis connection
	if redisClient != nil {
		logger.Info("closing redis connection...")
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}

	// Stop health server
	logger.Info("stopping health server...")
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	// Sync logger
	logger.Sync()

	// Check if shutdown completed in time
	select {
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ shutdown timeout exceeded")
		return fmt.Errorf("graceful shutdown timeout")
	default:
		logger.Info("✅ shutdown completed successfully")
	}

	return nil
}
