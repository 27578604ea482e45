package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/cache"
	"github.com/SAP-F-2025/mocktest-service/internal/config"
	"github.com/SAP-F-2025/mocktest-service/internal/generation"
	"github.com/SAP-F-2025/mocktest-service/internal/handlers"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/mocktest-service/internal/retrieval"
	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
	"github.com/SAP-F-2025/mocktest-service/pkg"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Environment, os.Stdout)
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("Connected to PostgreSQL")

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	repo := postgres.NewRepository(db)
	defer repo.Close()

	publisher, err := cfg.Events.CreateEventPublisher(logger.With("component", "publisher"))
	if err != nil {
		return err
	}
	defer publisher.Close()

	deps := services.Dependencies{
		Repo:           repo,
		Retriever:      retrieval.NewRedisRetriever(redisClient, repo.Topic(), repo.Question(), cfg.RetrieverPrefix, logger.With("component", "retriever")),
		PoolProbe:      postgres.NewPoolProbe(db, cfg.DBMaxOpenConns),
		Cache:          cache.NewRedisCache(redisClient, logger.With("component", "cache")),
		EventPublisher: publisher,
		Validator:      validator.New(),
		Logger:         logger,
		EvaluationTTL:  cfg.EvaluationCacheTTL,
	}
	if cfg.AI.IsEnabled() {
		deps.Generator = generation.NewGeminiGenerator(cfg.AI, logger.With("component", "generator"))
		logger.Info("Question generation enabled", "model", cfg.AI.Model)
	} else {
		logger.Info("Question generation disabled, serving from the question bank")
	}

	serviceManager := services.NewServiceManager(deps)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	httpLogger := utils.NewSlogLogger(logger.With("component", "http"))
	auth := utils.NewTokenAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.LoggerMiddleware(httpLogger), utils.ContextLogger(httpLogger))
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	handlers.NewHandlerManager(serviceManager, deps.Validator, httpLogger, auth.Middleware(httpLogger)).
		WithHealthCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }).
		SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", utils.RequestIDHeader},
		ExposeHeaders:    []string{utils.RequestIDHeader, "X-Error-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = origins
	return c
}
