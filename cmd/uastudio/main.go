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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/uastudio/internal/adapter/fsm"
	oteladapter "github.com/neomorfeo/uastudio/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/uastudio/internal/adapter/river"
	"github.com/neomorfeo/uastudio/internal/adapter/sqlite"
	"github.com/neomorfeo/uastudio/internal/agent"
	"github.com/neomorfeo/uastudio/internal/app"
	"github.com/neomorfeo/uastudio/internal/config"
	"github.com/neomorfeo/uastudio/internal/idgen"
	"github.com/neomorfeo/uastudio/internal/logging"

	handler "github.com/neomorfeo/uastudio/internal/adapter/http"
)

const serviceName = "uastudio"

func main() {
	if err := run(); err != nil {
		log := logging.L()
		log.Fatal().Err(err).Msg("uastudio stopped with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.Init(cfg.Log)
	log := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	metrics, err := oteladapter.NewBatchMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}

	riverClient, err := riveradapter.Setup(ctx, db, cfg.River.Workers)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	// River stops on its own when its start context ends; shutdown is driven by Stop below.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("river stop")
		}
	}()

	newID, err := idgen.New(cfg.Session.IDStrategy)
	if err != nil {
		return fmt.Errorf("session ids: %w", err)
	}

	rng := agent.NewRandomRand()
	if cfg.Seed != 0 {
		rng = agent.NewRand(cfg.Seed)
	}

	// --- Application ---
	opts := []app.Option{
		app.WithSource(agent.New(rng, nil)),
		app.WithSessionIDs(newID),
		app.WithPublisher(oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient))),
		app.WithRecorder(metrics),
		app.WithProgress(func(produced, target int) {
			log.Debug().Int(logging.FieldProduced, produced).Int(logging.FieldRequested, target).Msg("generation progress")
		}),
	}
	if cfg.Persist {
		opts = append(opts, app.WithStore(oteladapter.NewTracingStore(repo)))
	} else {
		log.Info().Msg("persistence disabled, state lives in memory only")
	}

	engine := app.NewGenerationEngine(fsm.New(), opts...)
	if err := engine.Load(logging.WithLogger(ctx, log)); err != nil {
		log.Warn().Err(err).Msg("persisted state partially restored")
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logging.HTTPMiddleware(log))
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, cfg.OTel.ServiceVersion))
	handler.Register(api, engine)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("docs", "http://localhost:"+cfg.Port+"/docs").Msg("uastudio listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("stopped")
	return nil
}
