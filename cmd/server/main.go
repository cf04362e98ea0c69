package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/oxenqueue/oxenqueue/config"
	_ "github.com/oxenqueue/oxenqueue/docs"
	"github.com/oxenqueue/oxenqueue/internal/database"
	"github.com/oxenqueue/oxenqueue/internal/handlers"
	"github.com/oxenqueue/oxenqueue/internal/middleware"
	"github.com/oxenqueue/oxenqueue/internal/queue"
	"github.com/oxenqueue/oxenqueue/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting oxenqueue")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	shutdownTelemetry := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer shutdownTelemetry(context.Background())

	controller, err := queue.NewController(ctx, database.Pool(), cfg.Queue.ToQueueConfig(), *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build queue controller")
	}

	if err := controller.StartProcessing(ctx, queue.ProcessorConfig{
		JobType:           "echo",
		WorkFn:            echoWorkFn,
		Concurrency:       5,
		Timeout:           30 * time.Second,
		RecoveryThreshold: 2 * time.Minute,
		RecoveryInterval:  time.Minute,
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start echo processor")
	}

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	queueHandlers := handlers.NewQueueHandlers(controller)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", handlers.HealthCheck)

		queueGroup := internal.Group("/queue")
		{
			queueGroup.POST("/jobs", queueHandlers.Enqueue)
			queueGroup.GET("/jobs", queueHandlers.ListJobs)
			queueGroup.GET("/jobs/:id", queueHandlers.GetJob)
			queueGroup.DELETE("/jobs/:id", queueHandlers.DeleteJob)
			queueGroup.GET("/debug", queueHandlers.Debug)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	if err := controller.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Queue controller shutdown reported an error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// echoWorkFn is the built-in demonstration processor: it copies its
// body into the result verbatim. Real deployments register their own
// work function via queue.ProcessorConfig.WorkFn.
func echoWorkFn(_ context.Context, job *queue.Job) (json.RawMessage, error) {
	return job.Body, nil
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "oxenqueue").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
