package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/db"
	"github.com/yungbote/enrollment-backend/internal/http"
	"github.com/yungbote/enrollment-backend/internal/http/validation"
	"github.com/yungbote/enrollment-backend/internal/modules/enrollment/policy"
	"github.com/yungbote/enrollment-backend/internal/observability"
	"github.com/yungbote/enrollment-backend/internal/platform/envutil"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *http.Server

	store        *db.Service
	bus          bus.Bus
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	envErr := LoadEnvFile()

	log, err := logger.New(envutil.String("LOG_MODE", "development", nil))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if envErr != nil {
		log.Warn("Could not load env file", "error", envErr)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.LoadOtelConfig(log))

	store, err := db.Open(db.LoadConfig(log), log)
	if err != nil {
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}

	eventBus, err := bus.New(bus.LoadConfig(log), log)
	if err != nil {
		_ = store.Close()
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	if err := validation.Register(); err != nil {
		_ = eventBus.Close()
		_ = store.Close()
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, fmt.Errorf("register validators: %w", err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	theDB := store.DB()
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, reposet, policy.Load(log), eventBus)
	handlerset := wireHandlers(theDB, log, serviceset)
	mw := wireMiddleware(log, cfg)
	server := wireServer(log, cfg, handlerset, mw)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		store:        store,
		bus:          eventBus,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains in-flight
// requests within Cfg.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr())
		return a.Server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		defer cancel()
		a.Log.Info("Shutting down HTTP server")
		return a.Server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("Event bus close failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
