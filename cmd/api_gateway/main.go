package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adspend-finance-core/internal/api_gateway"
	"github.com/adspend-finance-core/internal/api_gateway/service"
	"github.com/adspend-finance-core/internal/config"
	"github.com/adspend-finance-core/internal/data/mongo"
	"github.com/adspend-finance-core/internal/data/postgres"
	"github.com/adspend-finance-core/internal/domain/topup"
	"github.com/adspend-finance-core/internal/logger"
	"github.com/adspend-finance-core/internal/platform/messaging/producers"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

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

	// Initialize the Kafka producer for reconciliation jobs
	jobProducer, err := producers.NewJobProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize reconciliation job producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	topupRepo := postgres.NewTopupRepository(log, postgresDB)
	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	discRepo := postgres.NewDiscrepancyRepository(log, postgresDB)
	logRepo := postgres.NewTransitionLogRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	reportRepo := postgres.NewPlatformReportRepository(log, postgresDB)
	refData := postgres.NewRefDataRepository(log, postgresDB)
	trailRepo := mongo.NewAuditTrailRepository(log, mongoDB.Database())

	// Initialize services
	feePolicy := topup.FlatPercentFee(cfg.Topup.FeePercent)
	topupService := service.NewTopupService(log, postgresDB, topupRepo, logRepo, outboxRepo, refData, trailRepo, feePolicy)
	reconService := service.NewReconciliationService(log, postgresDB, batchRepo, discRepo, logRepo, outboxRepo, reportRepo, trailRepo, jobProducer)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, topupService, reconService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no new work arrives
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = jobProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
