package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recanalysis/internal/api"
	"recanalysis/internal/api/handlers"
	"recanalysis/internal/repository"
	"recanalysis/internal/service"
	"recanalysis/pkg/config"
	"recanalysis/pkg/database"
	"recanalysis/pkg/logger"

	"go.uber.org/zap"
)

// @title recANALYSIS API
// @version 1.7
// @description Extração assistida de decisões judiciais para formulários de dispensa e autorização recursal

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting recANALYSIS service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Feedback database
	db, err := database.Open(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	feedbackRepo := repository.NewFeedbackRepository(db, appLogger)
	if err := feedbackRepo.Migrate(ctx); err != nil {
		appLogger.Fatal("Failed to migrate feedback table", zap.Error(err))
	}

	// Policy index: a missing source document is fatal at startup
	policyIndex, err := service.NewPolicyIndexFromConfig(cfg, logger.Named("policy_index"))
	if err != nil {
		appLogger.Fatal("Failed to initialize policy index", zap.Error(err))
	}
	if err := policyIndex.Verify(); err != nil {
		appLogger.Fatal("Policy source document unavailable", zap.Error(err))
	}
	if cfg.Policy.WarmUp {
		handle, err := policyIndex.GetOrBuild(ctx)
		if err != nil {
			appLogger.Fatal("Failed to build policy index", zap.Error(err))
		}
		appLogger.Info("Policy index ready",
			zap.String("source", handle.Source()),
			zap.Int("chunks", handle.Len()),
		)
	}

	backend, err := service.NewGenerationBackend(cfg, logger.Named("backend"))
	if err != nil {
		appLogger.Fatal("Failed to initialize generation backend", zap.Error(err))
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	// Initialize services
	pipeline := service.NewExtractionPipeline(
		service.NewPDFTextService(appLogger),
		policyIndex,
		backend,
		service.NewPromptBuilder(cfg.Policy.QueryPrefix, cfg.Policy.DecisionPrefix),
		cfg.Policy.TopK,
		logger.Named("pipeline"),
	)
	jobs := service.NewJobStore(cfg.Jobs.TTL, logger.Named("jobs"))
	feedback := service.NewFeedbackService(feedbackRepo, appLogger)
	renderer := service.NewRendererClient(&cfg.Renderer, logger.Named("renderer"))
	coordinator := service.NewGenerationCoordinator(jobs, pipeline, feedback, renderer, cfg.Jobs.MaxConcurrent, appLogger)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go jobs.Run(janitorCtx, cfg.Jobs.SweepInterval)

	// Setup router
	analysisHandler := handlers.NewAnalysisHandler(coordinator, appLogger)
	app := api.SetupRouter(api.RouterConfig{
		BodyLimit:    cfg.Server.BodyLimitMB << 20,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, analysisHandler, logger.Named("http"))

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(cfg.Server.WriteTimeout); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Abandoned running extractions", zap.Error(err))
	}
}
