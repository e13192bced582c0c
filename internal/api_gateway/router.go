package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adspend-finance-core/internal/api_gateway/handler"
	"github.com/adspend-finance-core/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	topupHandler *handler.TopupHandler,
	reconHandler *handler.ReconciliationHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Top-up approval workflow
		topups := v1.Group("/topups")
		{
			topups.POST("", topupHandler.Create)
			topups.GET("", topupHandler.List)
			topups.GET("/:id", topupHandler.Get)
			topups.GET("/:id/history", topupHandler.History)
			topups.POST("/:id/approve", topupHandler.Approve)
			topups.POST("/:id/pay", topupHandler.Pay)
			topups.POST("/:id/confirm", topupHandler.ConfirmReceipt)
			topups.POST("/:id/reject", topupHandler.Reject)
		}

		// Reconciliation batch management
		recon := v1.Group("/reconciliation")
		{
			batches := recon.Group("/batches")
			{
				batches.POST("", reconHandler.CreateBatch)
				batches.GET("", reconHandler.ListBatches)
				batches.GET("/:id", reconHandler.GetBatch)
				batches.GET("/:id/history", reconHandler.BatchHistory)
				batches.POST("/:id/start", reconHandler.StartBatch)
				batches.POST("/:id/cancel", reconHandler.CancelBatch)
				batches.POST("/:id/platform-spend", reconHandler.SubmitPlatformSpend)
				batches.GET("/:id/discrepancies", reconHandler.ListDiscrepancies)
			}

			discrepancies := recon.Group("/discrepancies")
			{
				discrepancies.GET("/:id", reconHandler.GetDiscrepancy)
				discrepancies.POST("/:id/investigate", reconHandler.InvestigateDiscrepancy)
				discrepancies.POST("/:id/resolve", reconHandler.ResolveDiscrepancy)
				discrepancies.POST("/:id/ignore", reconHandler.IgnoreDiscrepancy)
			}
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
