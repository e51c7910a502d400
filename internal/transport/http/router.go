package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with all review API routes.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "review-engine",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/review")
	{
		api.GET("/:type/definition", h.GetDefinition)
		api.POST("/:type/definition/reload", h.ReloadDefinition)

		api.GET("/:type/:id", h.GetSession)
		api.DELETE("/:type/:id/session", h.CloseSession)
		api.POST("/:type/:id/submit", h.Submit)
		api.GET("/:type/:id/history", h.GetHistory)
		api.GET("/:type/:id/progress", h.GetProgress)

		api.POST("/:type/batch", h.BatchReview)
		api.POST("/:type/batch-delete", h.BatchDelete)
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
