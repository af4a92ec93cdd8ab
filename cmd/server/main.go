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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorumhq/quorum/internal/api"
	"github.com/quorumhq/quorum/internal/auth"
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/llm"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/internal/orchestrator"
	"github.com/quorumhq/quorum/internal/planner"
	"github.com/quorumhq/quorum/internal/research"
	"github.com/quorumhq/quorum/internal/search"
	"github.com/quorumhq/quorum/internal/storage/pg"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	gin.SetMode(cfg.GinMode)

	// Model registry: built-in catalog, optionally overridden from YAML.
	registry := llm.NewRegistry()
	if cfg.ModelRegistryPath != "" {
		fileRegistry, err := llm.NewRegistryFromFile(cfg.ModelRegistryPath)
		if err != nil {
			log.Error("failed to load model registry, using built-in catalog",
				slog.String("path", cfg.ModelRegistryPath),
				slog.String("error", err.Error()))
		} else {
			registry = fileRegistry
		}
	}

	gateway := llm.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, log)

	var searcher orchestrator.Searcher
	if cfg.TavilyAPIKey != "" {
		searcher = search.NewService(log, cfg.TavilyAPIKey, cfg.SearchMaxResults, cfg.SearchTimeout)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	orch := orchestrator.New(gateway, registry, searcher, log, m, orchestrator.Config{
		SynthesisModel: cfg.SynthesisModel,
		ModelTimeout:   cfg.ModelTimeout,
	})
	plan := planner.New(gateway, log, cfg.PlannerModel)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "instance": logger.GetInstanceID()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	apiHandler := api.NewHandler(orch, plan, registry, log)
	apiHandler.RegisterRoutes(router)

	// Saved research requires a database and auth; both are optional in
	// local setups.
	if cfg.DatabaseURL != "" {
		db, err := pg.InitDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to initialize database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		validator, err := auth.NewTokenValidator(cfg.JWTJWKSURL)
		if err != nil {
			log.Error("failed to initialize token validator", slog.String("error", err.Error()))
			os.Exit(1)
		}

		authed := router.Group("/api")
		authed.Use(auth.NewMiddleware(validator).RequireAuth())
		research.NewHandler(research.NewStorage(log, db.DB), log).RegisterRoutes(authed)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	log.Info("server exited")
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, x-request-id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
