package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/config"
	"github.com/adspend-finance-core/internal/data/mongo"
	"github.com/adspend-finance-core/internal/data/postgres"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/logger"
	"github.com/adspend-finance-core/internal/platform/messaging/consumers"
	"github.com/adspend-finance-core/internal/platform/messaging/producers"
	"github.com/adspend-finance-core/internal/platform/persistence"
	"github.com/adspend-finance-core/internal/reconciliation_processor/consumer"
	"github.com/adspend-finance-core/internal/reconciliation_processor/outbox_poller"
	"github.com/adspend-finance-core/internal/reconciliation_processor/service"
	"github.com/adspend-finance-core/internal/reconciliation_processor/spendsource"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciliation_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciliation Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	discRepo := postgres.NewDiscrepancyRepository(log, postgresDB)
	logRepo := postgres.NewTransitionLogRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	ledgerReader := postgres.NewSpendLedgerRepository(log, postgresDB)
	reportRepo := postgres.NewPlatformReportRepository(log, postgresDB)
	trailRepo := mongo.NewAuditTrailRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer. May be nil if no DLQ topic is
	// configured; keep the interface value nil in that case.
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	// Initialize the platform spend resolver for all three sources
	resolver := spendsource.NewSelector(
		spendsource.NewManualSource(log, reportRepo),
		spendsource.NewAPISource(log, cfg.Reconciliation.SpendAPIURL, cfg.Reconciliation.SpendAPITimeout),
		spendsource.NewFileSource(log, cfg.Reconciliation.SpendFileDir),
	)

	classifier := reconciliation.Classifier{
		Tolerance:          money.NewFromFloat(cfg.Reconciliation.ToleranceAmount),
		LowThresholdPct:    decimal.NewFromFloat(cfg.Reconciliation.LowThresholdPct),
		MediumThresholdPct: decimal.NewFromFloat(cfg.Reconciliation.MediumThresholdPct),
	}

	workerPool, err := service.NewWorkerPoolService(service.WorkerPoolConfig{Size: cfg.WorkerPool.Size}, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	processingService := service.NewProcessingService(
		log,
		postgresDB,
		batchRepo,
		discRepo,
		logRepo,
		outboxRepo,
		ledgerReader,
		resolver,
		classifier,
		workerPool,
		dlq,
	)

	// Initialize the job event handler
	jobEventHandler := consumer.NewJobEventHandler(log, processingService, dlq)

	// Initialize outbox poller
	trailPublisher := outbox_poller.NewTrailPublisher(outboxRepo, trailRepo, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, trailPublisher, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.JobTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.JobTopic, cfg.Kafka.ConsumerGroup, jobEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shut down the worker pool so no new account tasks start
	workerPool.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Reconciliation Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Reconciliation Processor shutdown completed with errors")
	} else {
		log.Info("Reconciliation Processor shutdown completed successfully")
	}
}
