package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yishak-cs/shop-recommender/internal/database"
	"github.com/yishak-cs/shop-recommender/internal/handlers"
	"github.com/yishak-cs/shop-recommender/internal/logging"
	"github.com/yishak-cs/shop-recommender/internal/recommend"
	"github.com/yishak-cs/shop-recommender/internal/services"
	"github.com/yishak-cs/shop-recommender/pkg/helper"
)

func main() {
	config, err := helper.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(config.Log)
	logger := logging.Logger()

	if err := run(config, logger); err != nil {
		logging.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server exited properly")
}

func run(config *helper.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx, config, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := recommend.NewEngine(recommend.Config{
		Workers:      config.KNN.Workers,
		CacheEntries: config.KNN.CacheEntries,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create recommendation engine: %w", err)
	}
	defer engine.Close()

	recommendationService := services.NewRecommendationService(source, engine, services.BreakerConfig{
		FailureThreshold: config.Source.BreakerFailures,
		OpenTimeout:      config.Source.BreakerTimeout,
	}, logger)

	apiHandler := handlers.NewAPIHandler(recommendationService, handlers.Limits{
		DefaultNeighbors: config.KNN.Neighbors,
		DefaultResults:   config.KNN.Results,
		MaxNeighbors:     config.KNN.MaxNeighbors,
		MaxResults:       config.KNN.MaxResults,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handlers.CORS())
	if config.Server.RateLimit > 0 {
		router.Use(handlers.NewRateLimiter(config.Server.RateLimit, config.Server.RateBurst).Middleware())
	}
	apiHandler.SetupRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", config.Server.Port).Str("source", source.Name()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openSource connects the configured snapshot source, seeding Neo4j first
// when a seed URL is set
func openSource(ctx context.Context, config *helper.Config, logger zerolog.Logger) (services.SnapshotSource, func(), error) {
	if config.Source.Kind == helper.SourceFile {
		store := database.NewFileStore(config.Source.SnapshotPath)
		if err := store.Health(ctx); err != nil {
			logger.Warn().Err(err).Str("path", config.Source.SnapshotPath).Msg("snapshot file not readable yet")
		}
		return store, func() {}, nil
	}

	neo4jClient, err := database.NewNeo4jClient(ctx, config.Neo4j, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := neo4jClient.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("error closing Neo4j connection")
		}
	}

	if config.Source.SeedURL != "" {
		if err := seed(ctx, neo4jClient, config.Source.SeedURL, logger); err != nil {
			closeClient()
			return nil, nil, err
		}
	}

	return database.NewNeo4jStore(neo4jClient), closeClient, nil
}

func seed(ctx context.Context, client *database.Neo4jClient, seedURL string, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	importer := database.NewCSVImporter(client, logger)
	if err := importer.ImportAllData(ctx, seedURL); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	status, err := importer.GetImportStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get import status: %w", err)
	}

	event := logger.Info()
	for key, count := range status {
		event = event.Int(key, count)
	}
	event.Msg("seeded shop graph")
	return nil
}
