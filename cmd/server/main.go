package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/catalog-chat/internal/auth"
	"github.com/user/catalog-chat/internal/catalog"
	"github.com/user/catalog-chat/internal/chat"
	"github.com/user/catalog-chat/internal/config"
	"github.com/user/catalog-chat/internal/gateway"
	"github.com/user/catalog-chat/internal/middleware"
	"github.com/user/catalog-chat/internal/server"
	"github.com/user/catalog-chat/internal/store"
	"github.com/user/catalog-chat/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Initialize Structured Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize Gin
	r := gin.Default()

	// Initialize Stores
	usageStore, err := store.NewDynamoDBUsageStore(context.Background(), cfg.AWSRegion, cfg.UsageTableName)
	if err != nil {
		log.Fatalf("Failed to init Usage Store: %v", err)
	}

	metadataCache := store.NewRedisMetadataCache(cfg.RedisAddr, cfg.RedisPassword)

	// Initialize Telemetry (OpenTelemetry)
	tpShutdown, err := telemetry.InitTracer()
	if err != nil {
		slog.Error("Failed to init telemetry", "error", err)
		// Don't fatal, just log
	} else {
		defer func() {
			if err := tpShutdown(context.Background()); err != nil {
				slog.Error("Failed to shutdown telemetry", "error", err)
			}
		}()
	}

	// Credential Provider + Request Gateway
	provider := auth.NewProvider(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.StaticToken, cfg.BackendTimeout)
	gw := gateway.New(provider, cfg.BackendTimeout)

	// Backend Clients
	chatClient := chat.NewClient(gw, cfg.WorkspaceHost, cfg.ServingEndpoint)
	catalogClient := catalog.NewClient(gw, cfg.WorkspaceHost, metadataCache, cfg.CacheTTL)

	// Register Middleware
	r.Use(otelgin.Middleware("catalog-chat"))
	r.Use(middleware.MetricsMiddleware())

	// Routes
	handler := server.NewHandler(chatClient, catalogClient, usageStore, cfg.CatalogName, cfg.SchemaName)
	handler.Register(r)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	// Metrics Endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Graceful Shutdown Setup
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Start Server in Goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort, "endpoint", cfg.ServingEndpoint)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server init failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for Interrupt Signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Context with 10s timeout for active requests and cleanup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Wait for async tasks (Usage Logs)
	slog.Info("Waiting for async tasks to complete...")
	if err := handler.Shutdown(ctx); err != nil {
		slog.Error("Failed to complete async tasks", "error", err)
	}

	slog.Info("Server exiting")
}
