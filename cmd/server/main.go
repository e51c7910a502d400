package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kbase/review-engine/internal/application/review"
	"github.com/kbase/review-engine/internal/config"
	"github.com/kbase/review-engine/internal/infrastructure/backend"
	transport "github.com/kbase/review-engine/internal/transport/http"
	"github.com/kbase/review-engine/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting review engine",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Int("port", cfg.Server.Port))

	gateway := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	workflows := review.NewWorkflowClient(gateway, logger)

	sessions := transport.NewSessionRegistry(func(resourceType, resourceID string) *review.Session {
		return review.NewSession(review.SessionConfig{
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			ProcessingNode: cfg.Workflow.ProcessingNode,
			PollInterval:   cfg.Workflow.PollInterval,
		}, gateway, workflows, review.SessionEvents{}, logger)
	}, logger)

	handler := transport.NewHandler(sessions, workflows, gateway, logger)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.NewRouter(handler, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Close sessions first so no watcher keeps polling a backend we are
	// about to stop talking to.
	sessions.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
