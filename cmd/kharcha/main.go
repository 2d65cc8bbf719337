package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/api"
	"kharcha/internal/cache"
	"kharcha/internal/config"
	"kharcha/internal/events"
	apphttp "kharcha/internal/http"
	"kharcha/internal/log"
	"kharcha/internal/memstore"
	"kharcha/internal/notify"
	"kharcha/internal/prefs"
	"kharcha/internal/state"
	"kharcha/internal/views"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()

	var backend state.Backend
	switch cfg.DataBackend {
	case "rest":
		client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, cfg.MonthCacheTTL)
		if mc := client.MonthCache(); mc != nil {
			cacheManager.Register(mc)
		}
		backend = client
		logger.Info("using rest backend", "base_url", cfg.APIBaseURL)
	default:
		backend = memstore.New()
		logger.Info("using in-memory backend")
	}
	cacheManager.StartCleanup(10 * time.Minute)

	store, err := prefs.NewStore(cfg.PrefsDBPath, logger.WithComponent(log.ComponentPrefs))
	if err != nil {
		logger.Error("failed to open preferences store", log.FieldError, err, "path", cfg.PrefsDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var eventsClient *events.Client
	var publisher state.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Events are best effort: run without them rather than refusing
			// to start.
			logger.Warn("AMQP unavailable, mutation events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			eventsClient = client
			publisher = client
			logger.Info("publishing mutation events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	notifier := notify.New(notify.DefaultLifetime)
	ctrl := state.NewController(backend, store, notifier, publisher, logger.WithComponent(log.ComponentState))

	surfaces := apphttp.Surfaces{
		Sidebar:  &views.Sidebar{},
		Summary:  &views.Summary{},
		Charts:   &views.Charts{},
		Table:    &views.Table{},
		Settings: &views.Settings{},
	}
	ctrl.RegisterSurface(surfaces.Sidebar)
	ctrl.RegisterSurface(surfaces.Summary)
	ctrl.RegisterSurface(surfaces.Charts)
	ctrl.RegisterSurface(surfaces.Table)
	ctrl.RegisterSurface(surfaces.Settings)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	ctrl.Init(startCtx)
	startCancel()

	srv := apphttp.NewServer(":"+cfg.Port, ctrl, surfaces, logger.WithComponent(log.ComponentHTTP))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Refresh the dataset when a sibling client mutates the backend.
	if eventsClient != nil {
		go func() {
			err := eventsClient.ConsumeExpenseEvents(ctx, func(msg *events.ExpenseEventMessage) error {
				logger.Info("mutation event received", "action", msg.Action, log.FieldExpenseID, msg.ExpenseID)
				ctrl.Refresh(ctx)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("event consumer stopped", log.FieldError, err)
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		cancel()
	}()

	logger.Info("starting kharcha server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
