package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adiwicaksono/pd-tracker/internal/auth"
	"github.com/adiwicaksono/pd-tracker/internal/config"
	"github.com/adiwicaksono/pd-tracker/internal/export"
	httpserver "github.com/adiwicaksono/pd-tracker/internal/interfaces/http"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/internal/storage"
	"github.com/adiwicaksono/pd-tracker/internal/workflow"
	"github.com/adiwicaksono/pd-tracker/pkg/database"
	"github.com/adiwicaksono/pd-tracker/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Populate the environment from .env before viper reads it.
	_ = gotenv.Load()

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
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

	logger.Info("Starting Perjalanan Dinas tracker",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	if err := os.MkdirAll(cfg.Uploads.Dir, 0755); err != nil {
		logger.Fatal("Failed to create uploads directory", zap.Error(err))
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ticketRepo := repository.NewTicketRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	stepRepo := repository.NewStepConfigRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	settingRepo := repository.NewSettingRepository(db.DB, logger)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := auth.NewService(userRepo, tokens, logger)
	if err := authService.BootstrapAdmin(cfg.Auth.DefaultAdmin, cfg.Auth.DefaultPassword); err != nil {
		logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	workflowService := workflow.NewService(db, ticketRepo, historyRepo, stepRepo, cfg.Workflow.VarianceStep, logger)
	catalogService := workflow.NewCatalogService(db, stepRepo, logger)
	uploadStore := storage.NewStore(cfg.Uploads.Dir, cfg.Uploads.PublicPath, cfg.Uploads.MaxSizeMB, logger)
	exporter := export.NewExporter(logger)

	handlers := httpserver.NewHandlers(
		workflowService,
		catalogService,
		authService,
		settingRepo,
		uploadStore,
		exporter,
		cfg.Uploads.PublicPath,
		logger,
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, authService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
