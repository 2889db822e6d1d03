package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantprep/preprocessing-go/internal/api"
	"github.com/quantprep/preprocessing-go/internal/api/handlers"
	"github.com/quantprep/preprocessing-go/internal/cache"
	"github.com/quantprep/preprocessing-go/internal/config"
	"github.com/quantprep/preprocessing-go/internal/database"
	"github.com/quantprep/preprocessing-go/internal/events"
	"github.com/quantprep/preprocessing-go/internal/logging"
	"github.com/quantprep/preprocessing-go/internal/preprocessing"
	"github.com/quantprep/preprocessing-go/internal/services"
)

const serviceName = "preprocessing-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	logger.LogStartup(serviceName, "1.0.0", cfg.Server.Port)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Wire the pipeline: repository, transforms, orchestrator
	repository := database.NewSeriesRepository(db.Pool)
	service := services.NewPreprocessingService(
		repository,
		preprocessing.NewInterpolatingFiller(),
		preprocessing.NewStatisticalDetector(),
		preprocessing.NewBucketResampler(),
		preprocessing.NewCandleFeatureEngineer(),
		logger.WithComponent("pipeline"),
	)

	reports := cache.NewReportCache(redis, 0, logger.WithComponent("report_cache"))

	// Event path: publisher, handler, consumer loop
	publisher := events.NewKafkaPublisher(
		cfg.Kafka.Brokers,
		cfg.Kafka.CompletedTopic,
		cfg.Kafka.FailedTopic,
		logger.WithComponent("publisher"),
	)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("failed to close publisher")
		}
	}()

	defaults, err := cfg.Preprocessing.PipelineDefaults()
	if err != nil {
		log.Fatalf("Invalid preprocessing defaults: %v", err)
	}
	handler := events.NewIngestionHandler(service, publisher, defaults, logger.WithComponent("ingestion_handler"))
	consumer := events.NewConsumer(cfg.Kafka, handler, logger.WithComponent("consumer"))

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Run(consumerCtx); err != nil {
			logger.WithError(err).Error("consumer exited")
		}
	}()

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, redis,
		handlers.NewPreprocessingHandler(service, reports),
		handlers.NewSeriesHandler(repository),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.LogShutdown(serviceName, "signal received")

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close consumer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
