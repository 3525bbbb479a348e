// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
// It is used to control the verbosity of log output.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Task executor kinds used by split states.
const (
	TaskExecutorSync  = "sync"
	TaskExecutorAsync = "async"
	TaskExecutorPool  = "pool"
)

// Job repository kinds.
const (
	RepositoryInMemory = "inmemory"
	RepositorySQL      = "sql"
)

// Telemetry exporter kinds.
const (
	ExporterNone     = "none"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys is a list of keys in JobParameters whose values should be masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// SplitConfig selects the task executor that runs the flows of a split state.
type SplitConfig struct {
	// TaskExecutor is one of "sync", "async" or "pool".
	TaskExecutor string `yaml:"task_executor"`
	// ConcurrencyLimit bounds the async executor. 0 means unlimited.
	ConcurrencyLimit int `yaml:"concurrency_limit"`
	// PoolSize is the number of workers of the pool executor. 0 means runtime.NumCPU().
	PoolSize int `yaml:"pool_size"`
	// QueueCapacity is the number of tasks the pool executor queues before rejecting.
	QueueCapacity int `yaml:"queue_capacity"`
}

// StepConfig holds defaults applied to steps built from job definitions.
type StepConfig struct {
	// StartLimit is the default start limit of a step. 0 means unlimited.
	StartLimit int `yaml:"start_limit"`
	// AllowStartIfComplete lets completed steps run again on restart.
	AllowStartIfComplete bool `yaml:"allow_start_if_complete"`
	// ExitCodeMappings maps registered error type names to the exit code of a step failing with them.
	ExitCodeMappings map[string]string `yaml:"exit_code_mappings"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the default job name if not specified elsewhere.
	JobName string `yaml:"job_name"`
	// Split configures split execution.
	Split SplitConfig `yaml:"split"`
	// Step holds step defaults.
	Step StepConfig `yaml:"step"`
	// MetricsAsyncBufferSize is the buffer size for asynchronous metric recording.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds the connection settings of the SQL job repository.
type DatabaseConfig struct {
	// Type is one of "sqlite", "postgres" or "mysql".
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Sslmode  string `yaml:"sslmode"`
	// Path is the SQLite database file, or ":memory:".
	Path string `yaml:"path"`
	// AutoMigrate applies the embedded schema migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
	// MigrationsTable overrides the table golang-migrate records applied versions in.
	MigrationsTable string     `yaml:"migrations_table"`
	Pool            PoolConfig `yaml:"pool"`
}

// JobRepositoryConfig selects and configures the job repository.
type JobRepositoryConfig struct {
	// Type is "inmemory" or "sql".
	Type     string         `yaml:"type"`
	Database DatabaseConfig `yaml:"database"`
}

// InfrastructureConfig holds settings for infrastructure components.
type InfrastructureConfig struct {
	JobRepository JobRepositoryConfig `yaml:"job_repository"`
}

// MetricsConfig enables metric recording.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Namespace prefixes Prometheus metric names.
	Namespace string `yaml:"namespace"`
}

// TracingConfig enables tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig configures metrics, tracing and the OTLP exporter shared by both.
type TelemetryConfig struct {
	ServiceName string        `yaml:"service_name"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
	// Exporter is one of "none", "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// SurfinConfig holds all configuration under the "surfin" top-level key.
type SurfinConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Security       SecurityConfig       `yaml:"security"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Surfin contains the top-level configuration for the batch framework.
	Surfin SurfinConfig `yaml:"surfin"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
//
// Returns:
//
//	A pointer to a new Config instance initialized with default settings.
func NewConfig() *Config {
	return &Config{
		Surfin: SurfinConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Batch: BatchConfig{
				Split: SplitConfig{
					TaskExecutor:  TaskExecutorAsync,
					QueueCapacity: 16,
				},
				Step: StepConfig{
					ExitCodeMappings: map[string]string{},
				},
				MetricsAsyncBufferSize: 100,
			},
			Infrastructure: InfrastructureConfig{
				JobRepository: JobRepositoryConfig{
					Type: RepositoryInMemory,
					Database: DatabaseConfig{
						Type: "sqlite",
						Path: ":memory:",
						Pool: PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetimeMinutes: 5},
					},
				},
			},
			Telemetry: TelemetryConfig{
				ServiceName: "surfin-flow",
				Exporter:    ExporterNone,
				Metrics:     MetricsConfig{Namespace: "surfin"},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
		},
	}
}
