package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/infrastructure/config"
	"github.com/yash-217/yash.fun/infrastructure/messaging"
	"github.com/yash-217/yash.fun/infrastructure/persistence/sqlstore"
)

func TestInitializeContainer_InMemory(t *testing.T) {
	cfg := config.Default(config.Test)
	cfg.Logging.Level = "error"

	c, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.Same(t, c.LocalBus, c.EventBus.(*messaging.MemoryBus))
	assert.Nil(t, c.Tracer)

	rec := httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Metrics.Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	catalog := c.CatalogRouter()
	rec = httptest.NewRecorder()
	catalog.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	catalog.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/residues", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "the catalog has no in-memory graph")
}

func TestProvideEventBus(t *testing.T) {
	cfg := config.Default(config.Test)
	local := ProvideMemoryBus(nopLogger(t))

	tests := []struct {
		driver string
		check  func(t *testing.T, bus ports.EventBus)
	}{
		{"memory", func(t *testing.T, bus ports.EventBus) { assert.Same(t, local, bus.(*messaging.MemoryBus)) }},
		{"none", func(t *testing.T, bus ports.EventBus) { assert.IsType(t, messaging.NopBus{}, bus) }},
		{"eventbridge", func(t *testing.T, bus ports.EventBus) {
			multi, ok := bus.(messaging.MultiBus)
			require.True(t, ok)
			assert.Len(t, multi, 2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg.Events.Driver = tt.driver
			cfg.Events.EventBusName = "bus"
			awsCfg, err := ProvideAWSConfig(context.Background(), cfg)
			require.NoError(t, err)
			tt.check(t, ProvideEventBus(cfg, awsCfg, local, nil, nopLogger(t)))
		})
	}
}

func TestInitializeContainer_SQLiteSnapshots(t *testing.T) {
	cfg := config.Default(config.Test)
	cfg.Logging.Level = "error"
	cfg.Persistence.Driver = "sqlite"
	cfg.Persistence.DSN = filepath.Join(t.TempDir(), "snapshots.db")

	c, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.IsType(t, &sqlstore.SnapshotRepository{}, c.Snapshots)

	rec := httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvideAWSConfig_StaticCredentials(t *testing.T) {
	cfg := config.Default(config.Test)
	cfg.AWS.Endpoint = "http://localhost:4566"
	cfg.AWS.AccessKeyID = "test"
	cfg.AWS.SecretAccessKey = "secret"

	awsCfg, err := ProvideAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, awsCfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *awsCfg.BaseEndpoint)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestProvideStructureArchive(t *testing.T) {
	cfg := config.Default(config.Test)
	awsCfg, err := ProvideAWSConfig(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Archive.Driver = "none"
	archive, err := ProvideStructureArchive(cfg, awsCfg, nopLogger(t))
	require.NoError(t, err)
	assert.Nil(t, archive)

	cfg.Archive.Driver = "s3"
	cfg.Archive.Bucket = ""
	_, err = ProvideStructureArchive(cfg, awsCfg, nopLogger(t))
	assert.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	cfg := config.Default(config.Test)
	c, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	next := config.Default(config.Test)
	next.Search.PollInterval = 2 * time.Second
	next.Search.MaxAttempts = 10
	next.Snap.BondDistance = 4.2
	next.Snap.Threshold = 6

	c.ApplyConfig(next)

	settings := c.Orchestrator.Settings()
	assert.Equal(t, 2*time.Second, settings.PollInterval)
	assert.Equal(t, 10, settings.MaxAttempts)
	bond, threshold := c.Workspace.SnapSettings()
	assert.Equal(t, 4.2, bond)
	assert.Equal(t, 6.0, threshold)
	assert.Same(t, next, c.Config)
}

func nopLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zap.NewNop()
}
