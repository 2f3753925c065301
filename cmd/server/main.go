package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/contacts/internal/auth"
	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/metrics"
	"github.com/JonMunkholm/contacts/internal/store"
	"github.com/JonMunkholm/contacts/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database", "driver", db.Driver())

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Seed.OnStart {
		res, err := db.Seed(ctx)
		if err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
		slog.Info("seed complete", "countries", res.Countries, "persons", res.Persons)
	}

	m := metrics.New()
	exports := core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	m.WatchExportLimiter(exports)

	countriesRepo := store.NewCountriesRepository(db)
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(m),
		core.WithMaxImportSize(cfg.Import.MaxFileSize),
	}
	countries := core.NewCountriesService(countriesRepo, opts...)
	persons := core.NewPersonsService(store.NewPersonsRepository(db), countriesRepo,
		append(opts, core.WithExportLimiter(exports))...)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	accounts := auth.NewService(store.NewAccountsRepository(db), tokens, logger)

	server := web.NewServer(web.Deps{
		Persons:   persons,
		Countries: countries,
		Accounts:  accounts,
		Metrics:   m,
		Health:    db,
		Exports:   exports,
	}, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active exports to complete (with timeout)
		if status := exports.Status(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := exports.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
