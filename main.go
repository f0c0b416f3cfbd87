package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookshelf/internal/app"
	"bookshelf/internal/assets"
	"bookshelf/internal/config"
	"bookshelf/internal/database"
	"bookshelf/internal/logger"
	"bookshelf/internal/repositories"
	"bookshelf/internal/security"
	"bookshelf/internal/services"
	"bookshelf/internal/worker"
	"bookshelf/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	// --- Asset store ---
	store, err := newAssetStore(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("asset store ready", "backend", cfg.AssetBackend, "bucket", cfg.Assets.Bucket)

	// --- Messaging (optional) ---
	var removals services.RemovalPublisher
	if cfg.MessagingEnabled() {
		mqClient, err := rabbitmq.NewClient(cfg.RabbitMQ, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := mqClient.Close(); err != nil {
				log.Error("failed to close RabbitMQ client", "error", err)
			}
		}()
		removals = mqClient

		cleaner := worker.NewAssetCleaner(store, log.With("component", "asset_cleaner"))
		if err := cleaner.Start(ctx, mqClient); err != nil {
			return fmt.Errorf("failed to start asset cleaner: %w", err)
		}
	} else {
		log.Info("RABBITMQ_URL not set, replaced assets are removed inline")
	}

	// --- Services ---
	tokens := security.NewJWTIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := services.NewAuthService(
		repositories.NewGORMUserRepository(db),
		security.NewBcryptHasher(0),
		tokens,
	)
	bookService := services.NewBookService(repositories.NewGORMBookRepository(db), store, removals, log)

	// --- HTTP ---
	server := app.New(app.Deps{
		AuthService:    authService,
		BookService:    bookService,
		Tokens:         tokens,
		Logger:         log,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		FrontendDomain: cfg.FrontendDomain,
		AccessLog:      true,
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.AppPort, "env", cfg.AppEnv)
		listenErr <- server.Listen(cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("server gracefully stopped")
	return nil
}

func newAssetStore(ctx context.Context, cfg *config.Config) (assets.Store, error) {
	switch cfg.AssetBackend {
	case config.BackendMinio:
		return assets.NewMinioStore(ctx, cfg.Assets)
	case config.BackendS3:
		return assets.NewS3Store(ctx, cfg.Assets)
	case config.BackendMemory:
		return assets.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported asset backend %q", cfg.AssetBackend)
	}
}
