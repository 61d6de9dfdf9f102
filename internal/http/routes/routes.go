package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-optimizer/internal/http/handlers"
	"github.com/phambaophuc/image-optimizer/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	batchHandler *handlers.BatchHandler
	logger       *zap.Logger
	maxBodySize  int64
}

func NewRouter(
	batchHandler *handlers.BatchHandler,
	logger *zap.Logger,
	maxBodySize int64,
) *Router {
	return &Router{
		batchHandler: batchHandler,
		logger:       logger,
		maxBodySize:  maxBodySize,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.batchHandler.HealthCheck)
		v1.GET("/stats", r.batchHandler.GetStats)

		batches := v1.Group("/batches")
		{
			batches.POST("", middleware.RequireMultipart(r.maxBodySize), r.batchHandler.CreateBatch)
			batches.POST("/async", middleware.RequireMultipart(r.maxBodySize), r.batchHandler.CreateBatchAsync)
			batches.GET("/:id", r.batchHandler.GetBatch)
			batches.GET("/:id/images/:index", r.batchHandler.DownloadImage)
			batches.GET("/:id/archive", r.batchHandler.DownloadArchive)
			batches.POST("/:id/archive/upload", r.batchHandler.UploadArchive)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Image optimizer is running",
		})
	})

	return router
}
