package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/litscout/backend/internal/api/handlers"
	"github.com/litscout/backend/internal/config"
	"github.com/litscout/backend/internal/database"
	"github.com/litscout/backend/internal/eutils"
	"github.com/litscout/backend/internal/health"
	"github.com/litscout/backend/internal/metrics"
	"github.com/litscout/backend/internal/middleware"
	"github.com/litscout/backend/internal/migration"
	"github.com/litscout/backend/internal/models"
	"github.com/litscout/backend/internal/repository"
	"github.com/litscout/backend/internal/services"
	"github.com/litscout/backend/pkg/utils"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout    = 15 * time.Second
	healthCheckTimeout = 5 * time.Second
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		utils.GetLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logger := utils.NewLogger(cfg.Log.Level)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.WithFields(logrus.Fields{
		"port":     cfg.Server.Port,
		"eutils":   cfg.PubMed.BaseURL,
		"cache":    cfg.CacheEnabled(),
		"history":  cfg.HistoryEnabled(),
		"max_hits": cfg.PubMed.MaxLimit,
	}).Info("Starting literature search service...")

	m := metrics.New()

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.Log.Level,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	var history models.SearchQueryRepository
	if dbManager.DB != nil {
		if err := migration.NewRunner(dbManager, logger).RunMigrations(cfg.Database.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		history = repository.NewRepositoryManager(dbManager.DB).SearchQuery
	}

	var cache handlers.ResponseCache
	if dbManager.Redis != nil {
		cache = database.NewCache(dbManager.Redis, logger)
	}

	eutilsClient := eutils.NewClient(cfg.PubMed.BaseURL, cfg.PubMed.Timeout, logger,
		eutils.WithIdentity(cfg.PubMed.APIKey, cfg.PubMed.Email, cfg.PubMed.Tool),
		eutils.WithMetrics(m),
	)
	articleService := services.NewArticleService(eutilsClient, logger)

	searchHandler := handlers.NewSearchHandler(articleService, cache, history, m, logger, handlers.Options{
		DefaultLimit: cfg.PubMed.DefaultLimit,
		MaxLimit:     cfg.PubMed.MaxLimit,
		CacheTTL:     cfg.Cache.TTL,
	})
	healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(eutilsClient, dbManager, logger), healthCheckTimeout)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(m))

	router.GET("/search-articles", searchHandler.HandleSearchArticles)
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	if history != nil {
		router.GET("/search-history", searchHandler.HandleSearchHistory)
	}
	router.NoRoute(func(c *gin.Context) {
		utils.AbortWithError(c, http.StatusNotFound, "Not found")
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(router)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
		// leave room for a full esearch plus esummary round trip
		WriteTimeout: 2*cfg.PubMed.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
