// Package server wires configuration, storage, services, upstream clients
// and the HTTP layer together and runs them until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/api"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/metrics"
	"github.com/dmitrijs2005/lexisync/internal/server/services"
	"github.com/dmitrijs2005/lexisync/internal/server/storage"
	"github.com/dmitrijs2005/lexisync/internal/server/upstream"
	"github.com/gin-gonic/gin"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  storage.Store
	server *api.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	collector := metrics.NewCollector(nil)
	client := upstream.NewHTTPClient(cfg.UpstreamHeaderTimeout)

	handler := api.NewHandler(
		services.NewUserService(store, logger),
		services.NewSyncService(store, collector, logger),
		upstream.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, client, collector),
		upstream.NewDictionaryClient(cfg.DictionaryBaseURL, client, collector),
		upstream.NewTranslateClient(cfg.TranslateBaseURL, client, collector),
		upstream.NewAudioFetcher(client, collector),
		logger,
	)

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		Recorder:       collector,
		MetricsHandler: collector.Handler(),
		Backend:        store.Name(),
		CORSOrigins:    cfg.CORSOrigins,
		StaticDir:      cfg.StaticDir,
	})

	return &App{
		config: cfg,
		logger: logger,
		store:  store,
		server: api.NewServer(cfg.Address, router, cfg.ShutdownTimeout, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.store.Name(), "address", app.config.Address)

	app.initSignalHandler(cancelFunc)

	runErr := app.server.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "http server stopped", "error", runErr)
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}
