package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/application/services"
	domainservices "github.com/yash-217/yash.fun/domain/services"
	"github.com/yash-217/yash.fun/infrastructure/config"
	"github.com/yash-217/yash.fun/infrastructure/external/foldseek"
	"github.com/yash-217/yash.fun/infrastructure/external/rcsb"
	"github.com/yash-217/yash.fun/infrastructure/messaging"
	"github.com/yash-217/yash.fun/infrastructure/messaging/eventbridge"
	"github.com/yash-217/yash.fun/infrastructure/persistence/dynamodb"
	"github.com/yash-217/yash.fun/infrastructure/persistence/memory"
	"github.com/yash-217/yash.fun/infrastructure/persistence/sqlstore"
	storagememory "github.com/yash-217/yash.fun/infrastructure/storage/memory"
	s3archive "github.com/yash-217/yash.fun/infrastructure/storage/s3"
	"github.com/yash-217/yash.fun/interfaces/http/rest"
	"github.com/yash-217/yash.fun/internal/infrastructure/cache"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
)

const userAgent = "residuelab/1.0"

// ProvideLogger creates the application logger
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.IsProduction(), cfg.Logging.Level, cfg.Logging.Format)
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracerProvider starts the OTLP exporter when tracing is enabled.
// The provider is nil otherwise; its Shutdown is nil-safe.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.Tracing.Enabled {
		return nil, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise tracing: %w", err)
	}
	logger.Info("Tracing enabled",
		zap.String("endpoint", cfg.Tracing.Endpoint),
		zap.Float64("sampleRate", cfg.Tracing.SampleRate),
	)
	return tp, nil
}

// ProvideAWSConfig creates AWS configuration. Credentials are resolved
// lazily, so this succeeds even when every driver is in-memory. Static keys
// from configuration replace the default chain, e.g. for LocalStack.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}
	return awsCfg, nil
}

// ProvideSnapshotRepository selects the snapshot store
func ProvideSnapshotRepository(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.SnapshotRepository, error) {
	switch cfg.Persistence.Driver {
	case "dynamodb":
		client := awsdynamodb.NewFromConfig(awsCfg)
		logger.Info("Using DynamoDB snapshot store", zap.String("table", cfg.Persistence.TableName))
		return dynamodb.NewSnapshotRepository(client, cfg.Persistence.TableName, "", logger), nil
	case "sqlite", "postgres":
		repo, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.Persistence.Driver), cfg.Persistence.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s snapshot store: %w", cfg.Persistence.Driver, err)
		}
		logger.Info("Using SQL snapshot store", zap.String("driver", cfg.Persistence.Driver))
		return repo, nil
	default:
		return memory.NewSnapshotRepository(), nil
	}
}

// ProvideStructureArchive selects where exported structures are kept. A
// nil archive disables archiving.
func ProvideStructureArchive(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.StructureArchive, error) {
	switch cfg.Archive.Driver {
	case "s3":
		client := awss3.NewFromConfig(awsCfg, s3archive.NewClientOptions(cfg.AWS.Endpoint, cfg.Archive.PathStyle))
		archive, err := s3archive.NewArchive(client, s3archive.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return archive, nil
	case "memory":
		return storagememory.NewArchive(), nil
	default:
		return nil, nil
	}
}

// ProvideMemoryBus creates the in-process bus. It always exists so local
// subscribers see every event whatever the outbound driver is.
func ProvideMemoryBus(logger *zap.Logger) *messaging.MemoryBus {
	return messaging.NewMemoryBus(256, logger)
}

// ProvideEventBus selects the outbound domain event bus
func ProvideEventBus(cfg *config.Config, awsCfg aws.Config, local *messaging.MemoryBus, metrics *observability.Collector, logger *zap.Logger) ports.EventBus {
	switch cfg.Events.Driver {
	case "eventbridge":
		client := awseventbridge.NewFromConfig(awsCfg)
		publisher := eventbridge.NewPublisher(client, cfg.Events.EventBusName, cfg.Events.Source, metrics, logger)
		return messaging.MultiBus{local, publisher}
	case "memory":
		return local
	default:
		return messaging.NopBus{}
	}
}

// ProvideSearchClient creates the Foldseek client
func ProvideSearchClient(cfg *config.Config, logger *zap.Logger) ports.SearchClient {
	return foldseek.NewClient(foldseek.Config{
		BaseURL:        cfg.Search.BaseURL,
		RequestTimeout: cfg.Search.RequestTimeout,
		UserAgent:      userAgent,
		Breaker:        cfg.Search.Breaker,
	}, nil, logger)
}

// ProvideStructureSource creates the structure download client
func ProvideStructureSource(cfg *config.Config, logger *zap.Logger) ports.StructureSource {
	return rcsb.NewClient(rcsb.Config{
		PDBURLTemplate:       cfg.Fetch.PDBURLTemplate,
		AlphaFoldURLTemplate: cfg.Fetch.AlphaFoldURLTemplate,
		RequestTimeout:       cfg.Fetch.RequestTimeout,
		UserAgent:            userAgent,
		Breaker:              cfg.Fetch.Breaker,
	}, nil, logger)
}

// ProvideStructureCache creates the downloaded text cache
func ProvideStructureCache(cfg *config.Config) *cache.MemoryCache[string] {
	return cache.NewMemoryCache[string](cfg.Fetch.CacheSize, cfg.Fetch.CacheTTL)
}

// SearchSettings maps configuration onto orchestrator settings.
func SearchSettings(cfg *config.Config) services.SearchSettings {
	return services.SearchSettings{
		Mode:                  cfg.Search.Mode,
		Databases:             append([]string(nil), cfg.Search.Databases...),
		PollInterval:          cfg.Search.PollInterval,
		MaxAttempts:           cfg.Search.MaxAttempts,
		Timeout:               cfg.Search.Timeout,
		MaxMatchesPerDatabase: cfg.Search.MaxMatchesPerDatabase,
	}
}

// ProvideSearchOrchestrator creates the search workflow
func ProvideSearchOrchestrator(client ports.SearchClient, cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) *services.SearchOrchestrator {
	return services.NewSearchOrchestrator(client, SearchSettings(cfg), metrics, logger)
}

// ProvideSearchJobs creates the background search registry
func ProvideSearchJobs(orchestrator *services.SearchOrchestrator, bus ports.EventBus, cfg *config.Config, logger *zap.Logger) *services.SearchJobs {
	return services.NewSearchJobs(orchestrator, bus, services.JobsConfig{
		Retention: cfg.Search.JobRetention,
		MaxJobs:   cfg.Search.MaxJobs,
	}, logger)
}

// ProvideStructureFetcher creates the download and recenter service
func ProvideStructureFetcher(source ports.StructureSource, textCache *cache.MemoryCache[string], metrics *observability.Collector, logger *zap.Logger) *services.StructureFetcher {
	return services.NewStructureFetcher(source, textCache, metrics, logger)
}

// ProvideWorkspace creates the workspace that owns the residue graph
func ProvideWorkspace(
	cfg *config.Config,
	fetcher *services.StructureFetcher,
	jobs *services.SearchJobs,
	snapshots ports.SnapshotRepository,
	archive ports.StructureArchive,
	bus ports.EventBus,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.Workspace {
	snap := domainservices.NewSnapEngine()
	snap.BondDistance = cfg.Snap.BondDistance
	snap.SnapThreshold = cfg.Snap.Threshold

	return services.NewWorkspace(services.WorkspaceDeps{
		Snap:      snap,
		Fetcher:   fetcher,
		Jobs:      jobs,
		Snapshots: snapshots,
		Archive:   archive,
		Bus:       bus,
		Metrics:   metrics,
		Logger:    logger,
	})
}

// ProvideCatalog creates the stateless snapshot and search service
func ProvideCatalog(
	orchestrator *services.SearchOrchestrator,
	fetcher *services.StructureFetcher,
	snapshots ports.SnapshotRepository,
	archive ports.StructureArchive,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.Catalog {
	return services.NewCatalog(services.CatalogDeps{
		Orchestrator: orchestrator,
		Fetcher:      fetcher,
		Snapshots:    snapshots,
		Archive:      archive,
		Metrics:      metrics,
		Logger:       logger,
	})
}

// ProvideRouter builds the HTTP handler
func ProvideRouter(cfg *config.Config, ws *services.Workspace, snapshots ports.SnapshotRepository, metrics *observability.Collector, logger *zap.Logger) http.Handler {
	opts, metrics := routerOptions(cfg, snapshots, metrics)
	return rest.NewRouter(ws, metrics, logger, opts).Setup()
}

// routerOptions maps configuration onto router options. The collector is
// dropped when metrics are disabled.
func routerOptions(cfg *config.Config, snapshots ports.SnapshotRepository, metrics *observability.Collector) (rest.Options, *observability.Collector) {
	opts := rest.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		CORSMaxAge:     cfg.CORS.MaxAge,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Tracing:        cfg.Tracing.Enabled,
	}
	if p, ok := snapshots.(interface{ Ping(context.Context) error }); ok {
		opts.Checks = map[string]rest.ReadinessCheck{"snapshots": p.Ping}
	}
	if !cfg.Metrics.Enabled {
		return opts, nil
	}
	opts.MetricsPath = cfg.Metrics.Path
	return opts, metrics
}
