package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/bramble/config"
	"github.com/Ramsey-B/bramble/internal/repositories/stagedrecord"
	"github.com/Ramsey-B/bramble/pkg/cursor"
	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/jobs/ads"
	"github.com/Ramsey-B/bramble/pkg/jobs/contributions"
	"github.com/Ramsey-B/bramble/pkg/jobs/lobbying"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/logging"
	"github.com/Ramsey-B/bramble/pkg/middleware"
	"github.com/Ramsey-B/bramble/pkg/processor"
	"github.com/Ramsey-B/bramble/pkg/redis"
	"github.com/Ramsey-B/bramble/pkg/routes/health"
	jobroutes "github.com/Ramsey-B/bramble/pkg/routes/jobs"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, flush := logging.NewZapLogger(cfg.LogLevel, cfg.PrettyLogs)
	defer func() { _ = flush() }()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		_ = flush()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Exporter:    cfg.TracingExporter,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Staging database
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlxDB.Close()
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	migrationDriver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, migrationDriver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)
	stagingRepo := stagedrecord.NewRepository(db, logger)

	// Redis cursor store
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	cursorStore := cursor.NewStore(redisClient, logger)

	// Graph database
	graphClient, err := graph.NewClient(graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create graph client: %w", err)
	}
	defer func() { _ = graphClient.Close(context.Background()) }()
	merger := graph.NewMergeService(graphClient, logger)

	// Kafka producer for requeues and events
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		TriggerTopic: cfg.KafkaTriggerTopic,
		EventsTopic:  cfg.KafkaEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()
	emitter := events.NewEmitter(producer, logger)

	// Jobs
	apiClient := httpclient.NewClient(httpclient.Config{
		Timeout:         cfg.LobbyingAPITimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}, logger)

	jobDriver := driver.New(cursorStore, merger, logger, cfg.JobTimeBudget, cfg.JobMaxSoftFailures)
	proc := processor.NewProcessor(logger, jobDriver, producer, emitter,
		contributions.NewJob(stagingRepo, logger, cfg.JobBatchSize),
		ads.NewJob(stagingRepo, logger, cfg.JobBatchSize),
		lobbying.NewJob(apiClient, stagingRepo, lobbying.Config{
			BaseURL:    cfg.LobbyingAPIBaseURL,
			APIKey:     cfg.LobbyingAPIKey,
			PageSize:   cfg.LobbyingAPIPageSize,
			MaxOffset:  cfg.LobbyingAPIMaxOffset,
			MaxRetries: cfg.JobMaxRetries,
			RetryDelay: cfg.JobRetryDelay,
		}, logger),
	)

	// Trigger consumer
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(cfg, logger, proc.HandleMessage)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
		defer func() { _ = consumer.Stop() }()
	}

	// Dependency container for route handlers
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	if err := ectoinject.RegisterInstance[*cursor.Store](container, cursorStore); err != nil {
		return fmt.Errorf("failed to register cursor store: %w", err)
	}
	if err := ectoinject.RegisterInstance[*stagedrecord.Repository](container, stagingRepo); err != nil {
		return fmt.Errorf("failed to register staging repository: %w", err)
	}
	if err := ectoinject.RegisterInstance[*processor.Processor](container, proc); err != nil {
		return fmt.Errorf("failed to register processor: %w", err)
	}
	if err := ectoinject.RegisterInstance[jobroutes.TriggerPublisher](container, producer); err != nil {
		return fmt.Errorf("failed to register trigger publisher: %w", err)
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(sqlxDB, redisClient, graphClient, version)
	checker.RegisterRoutes(e)
	jobroutes.Register(e.Group("/api/v1/jobs"))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
