//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/yash-217/yash.fun/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracerProvider,
	ProvideAWSConfig,
	ProvideSnapshotRepository,
	ProvideStructureArchive,
	ProvideMemoryBus,
	ProvideEventBus,
	ProvideSearchClient,
	ProvideStructureSource,
	ProvideStructureCache,
	ProvideSearchOrchestrator,
	ProvideSearchJobs,
	ProvideStructureFetcher,
	ProvideWorkspace,
	ProvideCatalog,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
