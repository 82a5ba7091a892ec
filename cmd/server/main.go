package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/api"
	"github.com/RMahshie/zsweep/internal/config"
	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/internal/repository/memory"
	"github.com/RMahshie/zsweep/internal/repository/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogging(cfg.LogLevel, cfg.Server.Env)

	ctx := context.Background()

	// Sweep records live in Postgres when configured, in memory otherwise
	var repo repository.SweepRepository
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		repo = postgres.NewPostgresSweepRepository(db)
		log.Info().Msg("Using PostgreSQL sweep repository")
	} else {
		repo = memory.NewSweepRepository()
		log.Info().Msg("DATABASE_URL not set, keeping sweeps in memory")
	}

	store, err := cfg.Storage.Store(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up result storage")
	}

	outputOpts, err := cfg.Output.FactoryOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid output configuration")
	}

	dev := cfg.Device.Analyzer()
	opts := []measurement.Option{
		measurement.WithOutputDir(cfg.Output.Dir),
		measurement.WithOutput(outputOpts...),
		measurement.WithRunnerOptions(cfg.Device.RunnerOptions()...),
	}
	if store != nil {
		opts = append(opts, measurement.WithStore(store))
	}
	session := measurement.NewService(dev, repo, opts...)

	router, _ := api.NewRouter(api.Dependencies{
		Session:        session,
		Sweeps:         repo,
		Store:          store,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting zsweep server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// A running sweep is stopped so the instrument is left idle.
	if err := session.Cancel(shutdownCtx); err != nil && err != measurement.ErrNotRunning {
		log.Error().Err(err).Msg("Failed to cancel sweep")
	}
	err = srv.Shutdown(shutdownCtx)
	if cerr := session.Disconnect(shutdownCtx); cerr != nil && cerr != measurement.ErrNotConnected {
		err = multierr.Append(err, cerr)
	}
	if err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
