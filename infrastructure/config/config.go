package config

import (
	"fmt"
	"time"

	"github.com/yash-217/yash.fun/infrastructure/external"
	"github.com/yash-217/yash.fun/pkg/utils"
)

// Environment is the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Config holds all application configuration
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development staging production test"`

	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
	Search      Search      `yaml:"search"`
	Fetch       Fetch       `yaml:"fetch"`
	Snap        Snap        `yaml:"snap"`
	AWS         AWS         `yaml:"aws"`
	Persistence Persistence `yaml:"persistence"`
	Archive     Archive     `yaml:"archive"`
	Events      Events      `yaml:"events"`
	Tracing     Tracing     `yaml:"tracing"`
	Metrics     Metrics     `yaml:"metrics"`
	CORS        CORS        `yaml:"cors"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP listener
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	// MaxBodyBytes caps request bodies, which mostly matters for PDB imports.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"min=1024"`
}

// Logging configures zap
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Search configures the remote similarity search
type Search struct {
	BaseURL   string   `yaml:"base_url" validate:"required,url"`
	Mode      string   `yaml:"mode" validate:"required"`
	Databases []string `yaml:"databases" validate:"min=1,dive,required"`

	PollInterval          time.Duration `yaml:"poll_interval" validate:"gt=0"`
	MaxAttempts           int           `yaml:"max_attempts" validate:"min=1"`
	Timeout               time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxMatchesPerDatabase int           `yaml:"max_matches_per_database" validate:"min=1"`
	RequestTimeout        time.Duration `yaml:"request_timeout" validate:"gt=0"`

	// JobRetention is how long finished jobs stay queryable.
	JobRetention time.Duration `yaml:"job_retention" validate:"gt=0"`
	MaxJobs      int           `yaml:"max_jobs" validate:"min=1"`

	Breaker external.BreakerConfig `yaml:"breaker"`
}

// Fetch configures structure downloads
type Fetch struct {
	PDBURLTemplate       string        `yaml:"pdb_url_template" validate:"required"`
	AlphaFoldURLTemplate string        `yaml:"alphafold_url_template" validate:"required"`
	RequestTimeout       time.Duration `yaml:"request_timeout" validate:"gt=0"`
	CacheSize            int           `yaml:"cache_size" validate:"min=0"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`

	Breaker external.BreakerConfig `yaml:"breaker"`
}

// Snap configures bonding geometry
type Snap struct {
	BondDistance float64 `yaml:"bond_distance" validate:"gt=0"`
	Threshold    float64 `yaml:"threshold" validate:"gt=0"`
}

// AWS holds shared AWS settings
type AWS struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`
	// Static credentials; empty uses the default credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `yaml:"session_token"`
}

// Persistence selects the snapshot store
type Persistence struct {
	Driver    string `yaml:"driver" validate:"oneof=memory dynamodb sqlite postgres"`
	TableName string `yaml:"table_name" validate:"required_if=Driver dynamodb"`
	// DSN is the SQLite file path or the Postgres connection string.
	DSN string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

// Archive selects where exported PDB text is kept
type Archive struct {
	Driver    string `yaml:"driver" validate:"oneof=none memory s3"`
	Bucket    string `yaml:"bucket" validate:"required_if=Driver s3"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// Events selects the domain event bus
type Events struct {
	Driver       string `yaml:"driver" validate:"oneof=none memory eventbridge"`
	EventBusName string `yaml:"event_bus_name" validate:"required_if=Driver eventbridge"`
	Source       string `yaml:"source" validate:"required"`
}

// Tracing configures OpenTelemetry
type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	SampleRate  float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
	Insecure    bool    `yaml:"insecure"`
}

// Metrics configures Prometheus
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required"`
	Path      string `yaml:"path" validate:"required"`
}

// CORS configures cross-origin access
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" validate:"min=0"`
}

// Default returns a configuration that runs locally with no external
// infrastructure besides the public search and download services.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    16 << 20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Search: Search{
			BaseURL:               "https://search.foldseek.com/api",
			Mode:                  "3diaa",
			Databases:             []string{"afdb50"},
			PollInterval:          time.Second,
			MaxAttempts:           300,
			Timeout:               5 * time.Minute,
			MaxMatchesPerDatabase: 10,
			RequestTimeout:        30 * time.Second,
			JobRetention:          30 * time.Minute,
			MaxJobs:               64,
			Breaker:               external.DefaultBreakerConfig(),
		},
		Fetch: Fetch{
			PDBURLTemplate:       "https://files.rcsb.org/download/%s.pdb",
			AlphaFoldURLTemplate: "https://alphafold.ebi.ac.uk/files/%s-model_v4.pdb",
			RequestTimeout:       30 * time.Second,
			CacheSize:            32,
			CacheTTL:             time.Hour,
			Breaker:              external.DefaultBreakerConfig(),
		},
		Snap: Snap{
			BondDistance: 3.8,
			Threshold:    5.0,
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		Persistence: Persistence{
			Driver:    "memory",
			TableName: "residuelab-" + string(env),
		},
		Archive: Archive{
			Driver: "memory",
			Prefix: "structures/",
		},
		Events: Events{
			Driver: "memory",
			Source: "residuelab.workbench",
		},
		Tracing: Tracing{
			ServiceName: "residuelab",
			SampleRate:  0.1,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "residuelab",
			Path:      "/metrics",
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		},
	}
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.Search.PollInterval > c.Search.Timeout {
		return fmt.Errorf("search.poll_interval (%s) exceeds search.timeout (%s)", c.Search.PollInterval, c.Search.Timeout)
	}
	if c.Environment == Production && c.Persistence.Driver == "memory" && c.Archive.Driver == "s3" {
		return fmt.Errorf("archive.driver s3 requires a durable persistence driver in production")
	}
	return nil
}

// ValidateShared checks that every store outlives a single process, as
// required when requests may land on different instances.
func (c *Config) ValidateShared() error {
	switch c.Persistence.Driver {
	case "dynamodb", "postgres":
	default:
		return fmt.Errorf("persistence.driver %s is local to one instance; use dynamodb or postgres", c.Persistence.Driver)
	}
	if c.Archive.Driver == "memory" {
		return fmt.Errorf("archive.driver memory is local to one instance; use s3 or none")
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
