// Package main provides the entry point for the medical research service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixir/medical-research-service/internal/config"
	"github.com/helixir/medical-research-service/internal/database"
	"github.com/helixir/medical-research-service/internal/dedup"
	"github.com/helixir/medical-research-service/internal/mesh"
	"github.com/helixir/medical-research-service/internal/observability"
	"github.com/helixir/medical-research-service/internal/outbox"
	"github.com/helixir/medical-research-service/internal/repository"
	"github.com/helixir/medical-research-service/internal/server"
	"github.com/helixir/medical-research-service/internal/session"
	"github.com/helixir/medical-research-service/internal/sources"
	"github.com/helixir/medical-research-service/internal/sources/cochrane"
	"github.com/helixir/medical-research-service/internal/sources/openalex"
	"github.com/helixir/medical-research-service/internal/sources/pubmed"
	"github.com/helixir/medical-research-service/internal/sources/scopus"
	"github.com/helixir/medical-research-service/internal/sources/semanticscholar"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("medical-research-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	sessionRepo := repository.NewPgSessionRepository(db)
	resultRepo := repository.NewPgResultRepository(db)
	meshRepo := repository.NewPgMeshRepository(db)

	metrics := observability.NewMetrics("medical_research")

	// Register bibliographic sources.
	registry := buildSourceRegistry(cfg.Sources)
	for _, s := range registry.EnabledSources() {
		logger.Info().Str("source", s.Name()).Msg("source enabled")
	}

	// MeSH vocabulary cache backed by the NLM lookup service.
	meshCache := mesh.NewCache(meshRepo, mesh.NewNLMClient(mesh.VocabularyConfig{
		BaseURL:   cfg.Mesh.BaseURL,
		Timeout:   cfg.Mesh.Timeout,
		RateLimit: cfg.Mesh.RateLimit,
	}), logger)

	orchestrator := session.NewOrchestrator(session.Deps{
		Sessions: sessionRepo,
		Results:  resultRepo,
		Events:   outbox.NewStore(db.Pool()),
		Mesh:     meshCache,
		Registry: registry,
		Dedup:    dedup.New(dedup.Config{TitleSimilarityThreshold: cfg.Dedup.TitleSimilarityThreshold}),
		Metrics:  metrics,
		Logger:   logger,
	})

	// Outbox relay publishes session events to Kafka when enabled.
	var relay *outbox.Relay
	if cfg.Kafka.Enabled {
		writer := outbox.NewKafkaWriter(cfg.Kafka)
		defer writer.Close()
		relay = outbox.NewRelay(db, writer, cfg.Outbox, logger)
		go relay.Run(ctx)
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("outbox relay started")
	}

	httpCfg := server.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := server.NewServer(httpCfg, orchestrator, sessionRepo, resultRepo, db, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("medical-research-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down medical-research-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Let running sessions drain before closing the database.
	orchestrator.Wait()

	logger.Info().Msg("medical-research-service shutdown complete")
	return nil
}

// buildSourceRegistry constructs source clients from configuration and
// registers the enabled ones.
func buildSourceRegistry(cfg config.SourcesConfig) *sources.Registry {
	registry := sources.NewRegistry()

	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxResults: cfg.PubMed.MaxResults,
		Enabled:    cfg.PubMed.Enabled,
	}))
	registry.Register(cochrane.New(cochrane.Config{
		BaseURL:    cfg.Cochrane.BaseURL,
		APIKey:     cfg.Cochrane.APIKey,
		Timeout:    cfg.Cochrane.Timeout,
		RateLimit:  cfg.Cochrane.RateLimit,
		MaxResults: cfg.Cochrane.MaxResults,
		Enabled:    cfg.Cochrane.Enabled,
	}))
	registry.Register(scopus.New(scopus.Config{
		BaseURL:    cfg.Scopus.BaseURL,
		APIKey:     cfg.Scopus.APIKey,
		Timeout:    cfg.Scopus.Timeout,
		RateLimit:  cfg.Scopus.RateLimit,
		MaxResults: cfg.Scopus.MaxResults,
		Enabled:    cfg.Scopus.Enabled,
	}))
	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.OpenAlex.BaseURL,
		Timeout:    cfg.OpenAlex.Timeout,
		RateLimit:  cfg.OpenAlex.RateLimit,
		MaxResults: cfg.OpenAlex.MaxResults,
		Enabled:    cfg.OpenAlex.Enabled,
	}))
	registry.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:    cfg.SemanticScholar.BaseURL,
		APIKey:     cfg.SemanticScholar.APIKey,
		Timeout:    cfg.SemanticScholar.Timeout,
		RateLimit:  cfg.SemanticScholar.RateLimit,
		MaxResults: cfg.SemanticScholar.MaxResults,
		Enabled:    cfg.SemanticScholar.Enabled,
	}))

	return registry
}
