package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-optimizer/internal/config"
	"github.com/phambaophuc/image-optimizer/internal/http/handlers"
	"github.com/phambaophuc/image-optimizer/internal/http/routes"
	"github.com/phambaophuc/image-optimizer/internal/services"
	"github.com/phambaophuc/image-optimizer/internal/services/archive"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"github.com/phambaophuc/image-optimizer/internal/services/queue"
	"github.com/phambaophuc/image-optimizer/internal/services/storage"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize services
	storageService, err := storage.NewStorageService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage service", zap.Error(err))
	}
	defer storageService.Close()

	var itemProcessor processor.ItemProcessor = processor.NewImageProcessor(cfg.Storage.MaxFileSize, logger,
		processor.WithAllowedTypes(cfg.Storage.AllowedTypes))
	itemProcessor = processor.NewCachedProcessor(itemProcessor, storageService, logger)

	builder, err := archive.NewBuilder(archive.Options{
		Method: cfg.Optimizer.ArchiveMethod,
		Level:  cfg.Optimizer.ArchiveLevel,
	})
	if err != nil {
		logger.Fatal("Invalid archive settings", zap.Error(err))
	}

	var uploader services.ArchiveUploader
	if storageService.UploadsEnabled() {
		uploader = storageService
	}

	optimizer := services.NewOptimizer(
		batch.New(itemProcessor, cfg.Optimizer.Workers, logger),
		builder,
		uploader,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCacheCleanup(ctx, storageService, logger)

	handlerOpts := []handlers.Option{handlers.WithStorage(storageService)}

	queueService, err := queue.NewQueueService(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, optimizer, cfg.Optimizer.DefaultQuality, logger)
	if err != nil {
		logger.Warn("Failed to initialize queue service", zap.Error(err))
		// Continue without queue service for basic functionality
	} else {
		defer queueService.Close()
		for i := 1; i <= cfg.RabbitMQ.Consumers; i++ {
			if err := queueService.StartWorker(ctx, i); err != nil {
				logger.Error("Failed to start worker", zap.Int("worker_id", i), zap.Error(err))
			}
		}
		handlerOpts = append(handlerOpts, handlers.WithQueue(queueService))
	}

	// Initialize handlers
	batchHandler := handlers.NewBatchHandler(optimizer, logger, cfg, handlerOpts...)

	// Room for every file at full size plus the multipart framing.
	maxBody := cfg.Storage.MaxFileSize*int64(cfg.Storage.MaxBatchFiles) + 1<<20
	router := routes.NewRouter(batchHandler, logger, maxBody)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	// Start server
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()

	logger.Info("Shutting down server...")
	optimizer.Cancel()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func runCacheCleanup(ctx context.Context, s *storage.StorageService, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.CleanupCache(ctx)
			if err != nil {
				logger.Warn("Cache cleanup failed", zap.Error(err))
				continue
			}
			logger.Debug("Cache cleanup finished", zap.Int("removed", removed))
		}
	}
}
