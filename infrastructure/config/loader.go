package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from layered sources, lowest priority first:
//  1. defaults in code
//  2. base.yaml
//  3. <environment>.yaml
//  4. environment variables
type Loader struct {
	basePath    string
	environment Environment
	lookupEnv   func(string) (string, bool)
}

// NewLoader creates a loader reading files from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	return &Loader{
		basePath:    basePath,
		environment: env,
		lookupEnv:   os.LookupEnv,
	}
}

// WithLookup replaces the environment variable source, for tests.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// BasePath returns the directory configuration files are read from.
func (l *Loader) BasePath() string {
	return l.basePath
}

// Load applies every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default(l.environment)
	cfg.LoadedFrom = []string{"defaults"}

	for _, name := range []string{"base", strings.ToLower(string(l.environment))} {
		path, err := l.loadFile(name, cfg)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s config: %w", name, err)
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	l.applyEnv(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.basePath, name+"."+ext)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		err = decodeYAML(f, cfg)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", fs.ErrNotExist
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays environment variables on the configuration.
func (l *Loader) applyEnv(cfg *Config) {
	cfg.Server.Host = l.getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = l.getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Logging.Level = l.getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = l.getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Search.BaseURL = l.getEnv("SEARCH_BASE_URL", cfg.Search.BaseURL)
	cfg.Search.Mode = l.getEnv("SEARCH_MODE", cfg.Search.Mode)
	cfg.Search.Databases = l.getEnvList("SEARCH_DATABASES", cfg.Search.Databases)
	cfg.Search.PollInterval = l.getEnvDuration("SEARCH_POLL_INTERVAL", cfg.Search.PollInterval)
	cfg.Search.MaxAttempts = l.getEnvInt("SEARCH_MAX_ATTEMPTS", cfg.Search.MaxAttempts)
	cfg.Search.Timeout = l.getEnvDuration("SEARCH_TIMEOUT", cfg.Search.Timeout)

	cfg.Fetch.PDBURLTemplate = l.getEnv("FETCH_PDB_URL_TEMPLATE", cfg.Fetch.PDBURLTemplate)
	cfg.Fetch.AlphaFoldURLTemplate = l.getEnv("FETCH_ALPHAFOLD_URL_TEMPLATE", cfg.Fetch.AlphaFoldURLTemplate)

	cfg.Snap.BondDistance = l.getEnvFloat("SNAP_BOND_DISTANCE", cfg.Snap.BondDistance)
	cfg.Snap.Threshold = l.getEnvFloat("SNAP_THRESHOLD", cfg.Snap.Threshold)

	cfg.AWS.Region = l.getEnv("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.Endpoint = l.getEnv("AWS_ENDPOINT_URL", cfg.AWS.Endpoint)

	cfg.Persistence.Driver = l.getEnv("PERSISTENCE_DRIVER", cfg.Persistence.Driver)
	cfg.Persistence.TableName = l.getEnv("TABLE_NAME", cfg.Persistence.TableName)
	cfg.Persistence.DSN = l.getEnv("PERSISTENCE_DSN", cfg.Persistence.DSN)

	cfg.Archive.Driver = l.getEnv("ARCHIVE_DRIVER", cfg.Archive.Driver)
	cfg.Archive.Bucket = l.getEnv("ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Prefix = l.getEnv("ARCHIVE_PREFIX", cfg.Archive.Prefix)

	cfg.Events.Driver = l.getEnv("EVENTS_DRIVER", cfg.Events.Driver)
	cfg.Events.EventBusName = l.getEnv("EVENT_BUS_NAME", cfg.Events.EventBusName)

	cfg.Tracing.Enabled = l.getEnvBool("ENABLE_TRACING", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = l.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Metrics.Enabled = l.getEnvBool("ENABLE_METRICS", cfg.Metrics.Enabled)

	cfg.CORS.AllowedOrigins = l.getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
}

// getEnv gets an environment variable with a default value
func (l *Loader) getEnv(key, defaultValue string) string {
	if value, ok := l.lookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func (l *Loader) getEnvBool(key string, defaultValue bool) bool {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func (l *Loader) getEnvInt(key string, defaultValue int) int {
	if value := l.getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func (l *Loader) getEnvFloat(key string, defaultValue float64) float64 {
	if value := l.getEnv(key, ""); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func (l *Loader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := l.getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func (l *Loader) getEnvList(key string, defaultValue []string) []string {
	value := l.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// EnvironmentFromEnv reads APP_ENV or ENVIRONMENT, defaulting to development.
func EnvironmentFromEnv() Environment {
	for _, key := range []string{"APP_ENV", "ENVIRONMENT"} {
		if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
			return Environment(v)
		}
	}
	return Development
}

// Load reads configuration from CONFIG_DIR (default "config") for the
// environment named by APP_ENV.
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	return NewLoader(dir, EnvironmentFromEnv()).Load()
}
