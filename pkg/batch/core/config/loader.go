package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
//
// Parameters:
//
//	envFilePath: The path to the .env file.
//	embeddedConfig: The embedded configuration bytes.
//	expander: Expands ${VAR} placeholders in the embedded configuration. nil disables expansion.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	// 1. Defaults.
	cfg := NewConfig()

	// 2. Embedded YAML, after placeholder expansion, into a temporary Config.
	data := []byte(embeddedConfig)
	if expander != nil {
		expanded, err := expander.Expand(data)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in embedded config", err, false, false)
		}
		data = expanded
	}
	var yamlConfig Config
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	// 3. Merge YAML over the defaults.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level and validates the result.
//
// Parameters:
//
//	params: ConfigParams containing dependencies like embedded config and env file path.
//
// Returns:
//
//	A pointer to the initialized Config and an error if configuration loading or validation fails.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Surfin.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Surfin.System.Logging.Level)

	if err := Validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables,
// expanding ${VAR} placeholders in embeddedConfig with the process environment.
//
// Parameters:
//
//	envFilePath: The path to the .env file.
//	embeddedConfig: The embedded configuration bytes.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
}

// Validate checks enumerated settings and that exit code mappings reference registered error types.
func Validate(cfg *Config) error {
	s := &cfg.Surfin
	if err := checkOneOf("batch.split.task_executor", s.Batch.Split.TaskExecutor, TaskExecutorSync, TaskExecutorAsync, TaskExecutorPool); err != nil {
		return err
	}
	if s.Batch.Split.ConcurrencyLimit < 0 || s.Batch.Split.PoolSize < 0 || s.Batch.Split.QueueCapacity < 0 {
		return fmt.Errorf("batch.split: concurrency_limit, pool_size and queue_capacity must not be negative")
	}
	if err := checkOneOf("infrastructure.job_repository.type", s.Infrastructure.JobRepository.Type, RepositoryInMemory, RepositorySQL); err != nil {
		return err
	}
	if s.Infrastructure.JobRepository.Type == RepositorySQL {
		if err := checkOneOf("infrastructure.job_repository.database.type", s.Infrastructure.JobRepository.Database.Type, "sqlite", "postgres", "mysql"); err != nil {
			return err
		}
	}
	if err := checkOneOf("telemetry.exporter", s.Telemetry.Exporter, ExporterNone, ExporterOTLPGRPC, ExporterOTLPHTTP); err != nil {
		return err
	}

	names := make([]string, 0, len(s.Batch.Step.ExitCodeMappings))
	for name := range s.Batch.Step.ExitCodeMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	return checkExceptionClasses(names, "ExitCodeMappings")
}

func checkOneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value '%s' (allowed: %s)", key, value, strings.Join(allowed, ", "))
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
//
// Parameters:
//
//	destConfig: The destination Config to merge into.
//	sourceConfig: The source Config to merge from.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeSurfinConfig(&destConfig.Surfin, &sourceConfig.Surfin)
}

// mergeSurfinConfig merges source into dest.
func mergeSurfinConfig(dest, source *SurfinConfig) {
	if source.Batch.JobName != "" {
		dest.Batch.JobName = source.Batch.JobName
	}
	if source.Batch.MetricsAsyncBufferSize != 0 {
		dest.Batch.MetricsAsyncBufferSize = source.Batch.MetricsAsyncBufferSize
	}
	mergeSplitConfig(&dest.Batch.Split, &source.Batch.Split)
	mergeStepConfig(&dest.Batch.Step, &source.Batch.Step)

	mergeSystemConfig(&dest.System, &source.System)
	mergeJobRepositoryConfig(&dest.Infrastructure.JobRepository, &source.Infrastructure.JobRepository)
	mergeTelemetryConfig(&dest.Telemetry, &source.Telemetry)

	if source.Security.MaskedParameterKeys != nil {
		dest.Security.MaskedParameterKeys = source.Security.MaskedParameterKeys
	}
}

func mergeSplitConfig(dest, source *SplitConfig) {
	if source.TaskExecutor != "" {
		dest.TaskExecutor = source.TaskExecutor
	}
	if source.ConcurrencyLimit != 0 {
		dest.ConcurrencyLimit = source.ConcurrencyLimit
	}
	if source.PoolSize != 0 {
		dest.PoolSize = source.PoolSize
	}
	if source.QueueCapacity != 0 {
		dest.QueueCapacity = source.QueueCapacity
	}
}

func mergeStepConfig(dest, source *StepConfig) {
	if source.StartLimit != 0 {
		dest.StartLimit = source.StartLimit
	}
	if source.AllowStartIfComplete {
		dest.AllowStartIfComplete = true
	}
	if len(source.ExitCodeMappings) > 0 {
		if dest.ExitCodeMappings == nil {
			dest.ExitCodeMappings = make(map[string]string, len(source.ExitCodeMappings))
		}
		for k, v := range source.ExitCodeMappings {
			dest.ExitCodeMappings[k] = v
		}
	}
}

// mergeSystemConfig merges source into dest.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

func mergeJobRepositoryConfig(dest, source *JobRepositoryConfig) {
	if source.Type != "" {
		dest.Type = source.Type
	}
	d, s := &dest.Database, &source.Database
	if s.Type != "" {
		d.Type = s.Type
	}
	if s.Host != "" {
		d.Host = s.Host
	}
	if s.Port != 0 {
		d.Port = s.Port
	}
	if s.Database != "" {
		d.Database = s.Database
	}
	if s.User != "" {
		d.User = s.User
	}
	if s.Password != "" {
		d.Password = s.Password
	}
	if s.Sslmode != "" {
		d.Sslmode = s.Sslmode
	}
	if s.Path != "" {
		d.Path = s.Path
	}
	if s.AutoMigrate {
		d.AutoMigrate = true
	}
	if s.MigrationsTable != "" {
		d.MigrationsTable = s.MigrationsTable
	}
	if s.Pool.MaxOpenConns != 0 {
		d.Pool.MaxOpenConns = s.Pool.MaxOpenConns
	}
	if s.Pool.MaxIdleConns != 0 {
		d.Pool.MaxIdleConns = s.Pool.MaxIdleConns
	}
	if s.Pool.ConnMaxLifetimeMinutes != 0 {
		d.Pool.ConnMaxLifetimeMinutes = s.Pool.ConnMaxLifetimeMinutes
	}
}

func mergeTelemetryConfig(dest, source *TelemetryConfig) {
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Exporter != "" {
		dest.Exporter = source.Exporter
	}
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.Insecure {
		dest.Insecure = true
	}
	if source.Metrics.Enabled {
		dest.Metrics.Enabled = true
	}
	if source.Metrics.Namespace != "" {
		dest.Metrics.Namespace = source.Metrics.Namespace
	}
	if source.Tracing.Enabled {
		dest.Tracing.Enabled = true
	}
}

// checkExceptionClasses validates that all exception class names in the provided list
// are registered in the exception registry.
//
// Parameters:
//
//	classNames: A slice of strings representing exception class names.
//	configType: A string indicating the configuration type for error messages.
func checkExceptionClasses(classNames []string, configType string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s configuration references unknown exception class: '%s'. Ensure it is registered", configType, name)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name, prefixed with the names
// of the enclosing fields, e.g. SURFIN_BATCH_SPLIT_TASK_EXECUTOR.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "SURFIN_BATCH_").
//
// Returns: An error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles strings, integers, floats, bools, comma-separated string slices
// and comma-separated key=value string maps.
//
// Parameters:
//
//	field: The reflect.Value of the field to set.
//	value: The string value to convert and set.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		items := splitList(value)
		slice := reflect.MakeSlice(field.Type(), 0, len(items))
		for _, item := range items {
			slice = reflect.Append(slice, reflect.ValueOf(item))
		}
		field.Set(slice)
	case reflect.Map:
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		m := reflect.MakeMap(field.Type())
		for _, pair := range splitList(value) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got '%s'", pair)
			}
			m.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)), reflect.ValueOf(strings.TrimSpace(v)))
		}
		field.Set(m)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
