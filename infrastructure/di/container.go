package di

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/application/services"
	"github.com/yash-217/yash.fun/infrastructure/config"
	"github.com/yash-217/yash.fun/infrastructure/messaging"
	"github.com/yash-217/yash.fun/interfaces/http/rest"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       *observability.TracerProvider
	Orchestrator *services.SearchOrchestrator
	Workspace    *services.Workspace
	Catalog      *services.Catalog
	Snapshots    ports.SnapshotRepository
	LocalBus     *messaging.MemoryBus
	EventBus     ports.EventBus
	Router       http.Handler
}

// CatalogRouter builds the stateless HTTP surface over c.Catalog. It
// shares middleware, health checks and metrics with Router.
func (c *Container) CatalogRouter() http.Handler {
	opts, metrics := routerOptions(c.Config, c.Snapshots, c.Metrics)
	return rest.NewCatalogRouter(c.Catalog, metrics, c.Logger, opts).SetupCatalog()
}

// ApplyConfig pushes the hot-reloadable settings of cfg into the running
// services. Everything else needs a restart.
func (c *Container) ApplyConfig(cfg *config.Config) {
	c.Orchestrator.UpdateSettings(SearchSettings(cfg))
	c.Workspace.UpdateSnapSettings(cfg.Snap.BondDistance, cfg.Snap.Threshold)
	c.Config = cfg
	c.Logger.Info("Applied configuration",
		zap.Duration("pollInterval", cfg.Search.PollInterval),
		zap.Int("maxAttempts", cfg.Search.MaxAttempts),
		zap.Float64("bondDistance", cfg.Snap.BondDistance),
		zap.Float64("snapThreshold", cfg.Snap.Threshold),
	)
}

// WatchConfig reloads configuration from loader's directory and applies
// it on every change. The caller stops the returned watcher.
func (c *Container) WatchConfig(loader *config.Loader) (*config.Watcher, error) {
	w, err := config.NewWatcher(loader, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	w.OnChange(c.ApplyConfig)
	return w, nil
}

// Close cancels running searches, flushes traces and releases the
// snapshot store's connections.
func (c *Container) Close(ctx context.Context) error {
	c.Workspace.Close()
	err := c.Tracer.Shutdown(ctx)
	if closer, ok := c.Snapshots.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
