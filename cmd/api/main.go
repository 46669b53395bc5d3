package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/samuelblakek/invoice-automation/config"
	"github.com/samuelblakek/invoice-automation/internal/database"
	nominalcoderepo "github.com/samuelblakek/invoice-automation/internal/repositories/nominalcode"
	runrepo "github.com/samuelblakek/invoice-automation/internal/repositories/run"
	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/events"
	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/kafka"
	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/logging"
	"github.com/samuelblakek/invoice-automation/pkg/matching"
	"github.com/samuelblakek/invoice-automation/pkg/processor"
	"github.com/samuelblakek/invoice-automation/pkg/redis"
	"github.com/samuelblakek/invoice-automation/pkg/routes/batch"
	"github.com/samuelblakek/invoice-automation/pkg/routes/health"
	"github.com/samuelblakek/invoice-automation/pkg/routes/nominalcode"
	"github.com/samuelblakek/invoice-automation/pkg/routes/reconcile"
	"github.com/samuelblakek/invoice-automation/pkg/routes/runs"
	"github.com/samuelblakek/invoice-automation/pkg/routes/settlement"
	"github.com/samuelblakek/invoice-automation/pkg/server"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
	"github.com/samuelblakek/invoice-automation/pkg/tracing/exporters"
	"github.com/samuelblakek/invoice-automation/pkg/validation"
)

const resultCacheSize = 1000

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.PrettyLogs)
	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := database.Connect(database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		logger.WithError(err).Error("Failed to create migration driver")
		os.Exit(1)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		logger.WithError(err).Error("Failed to apply migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	var locker *redis.Locker
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = redis.NewLocker(redisClient, "ledger:")
	}

	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	workbook, err := ledger.Open(ledger.Config{Path: cfg.LedgerPath}, logger)
	if err != nil {
		logger.WithError(err).Errorf("Failed to open ledger workbook %s", cfg.LedgerPath)
		os.Exit(1)
	}
	defer workbook.Close()

	runRepo := runrepo.NewRepository(db, logger)
	nominalRepo := nominalcoderepo.NewRepository(db, logger)

	matcher := matching.New(workbook, matching.Thresholds{
		Accept:         cfg.MatchAcceptThreshold,
		HighConfidence: cfg.MatchHighConfidence,
		StoreInfo:      cfg.StoreInfoThreshold,
		StoreBlock:     cfg.StoreBlockThreshold,
	}, logger)

	deps := engine.Dependencies{
		Matcher:      matcher,
		Validators:   validation.All(policyFromConfig(cfg)),
		Settler:      workbook,
		NominalCodes: nominalRepo,
		Logger:       logger,
	}
	if emitter != nil {
		deps.Emitter = emitter
	}
	eng := engine.New(deps)

	extractor := extract.NewGenericExtractor(extract.NewSupplierRegistry(extract.DefaultSupplierRules()), nil, logger)
	proc := processor.New(extractor, eng, runRepo, locker, cfg.LedgerPath, logger)
	cache := engine.NewResultCache(resultCacheSize)

	checker := health.NewChecker(db, redisPinger(redisClient), "1.0.0")

	srv, err := server.New(cfg, server.Handlers{
		Health:      checker,
		Reconcile:   reconcile.NewHandler(eng, cache),
		Settlement:  settlement.NewHandler(eng, cache, runRepo, logger),
		Batch:       batch.NewHandler(proc),
		Runs:        runs.NewHandler(runRepo),
		NominalCode: nominalcode.NewHandler(nominalRepo),
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to build server")
		os.Exit(1)
	}

	go func() {
		checker.SetReady(true)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server stopped")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
	}
}

// policyFromConfig parses the decimal policy knobs, keeping the
// defaults for anything unparseable
func policyFromConfig(cfg *config.Config) validation.Policy {
	policy := validation.DefaultPolicy()
	if v, err := decimal.NewFromString(cfg.SpendAuthThreshold); err == nil {
		policy.AuthThreshold = v
	}
	if v, err := decimal.NewFromString(cfg.AmountCeiling); err == nil {
		policy.AmountCeiling = v
	}
	if v, err := decimal.NewFromString(cfg.TaxTolerance); err == nil {
		policy.TaxTolerance = v
	}
	return policy
}

// redisPinger avoids handing the health checker a typed nil
func redisPinger(client *redis.Client) health.RedisPinger {
	if client == nil {
		return nil
	}
	return client
}

func setupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: "http",
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
		)),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}
