// Package config defines the configuration structure for the at-bat service.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (local only)
//
// Any missing required value or invalid format aborts startup.
package config

import (
	"time"

	"atbat/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"atbat-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Dataset       DatasetConfig
	Model         ModelConfig
	Session       SessionConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatasetConfig locates the two scenario tables. A ".zst" suffix marks a
// zstd-compressed CSV.
type DatasetConfig struct {
	EventsPath string `envconfig:"EVENTS_PATH" default:"data/train.csv" validate:"required"`
	ParksPath  string `envconfig:"PARKS_PATH" default:"data/park_dimensions.csv" validate:"required"`
}

// ModelConfig selects the classifier. When EndpointURL is set the remote
// scorer is used and Path is ignored.
type ModelConfig struct {
	Path        string        `envconfig:"MODEL_PATH" default:"data/model.json" validate:"required_without=EndpointURL"`
	EndpointURL string        `envconfig:"MODEL_ENDPOINT_URL" validate:"omitempty,url"`
	Timeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"2s" validate:"gt=0"`
}

// Remote reports whether predictions go to an inference endpoint.
func (m ModelConfig) Remote() bool {
	return m.EndpointURL != ""
}

// SessionConfig selects the session store and how scenarios advance.
type SessionConfig struct {
	Store         string        `envconfig:"SESSION_STORE" default:"memory" validate:"oneof=memory postgres redis sqlite"`
	AdvancePolicy string        `envconfig:"ADVANCE_POLICY" default:"wrap" validate:"oneof=wrap clamp"`
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"24h" validate:"gte=0"`
	PurgeInterval time.Duration `envconfig:"SESSION_PURGE_INTERVAL" default:"10m" validate:"gt=0"`

	// Backend locations; only the selected store's entry is required.
	DatabaseURL SecretString `envconfig:"DATABASE_URL" validate:"required_if=Store postgres"`
	RedisURL    SecretString `envconfig:"REDIS_URL" validate:"required_if=Store redis"`
	SQLitePath  string       `envconfig:"SQLITE_PATH" default:"data/sessions.db" validate:"required_if=Store sqlite"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Optional results feed; empty disables publishing.
	ResultsQueueURL string `envconfig:"RESULTS_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool          `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string        `envconfig:"METRIC_NAMESPACE" default:"AtBat" validate:"required"`
	FlushInterval   time.Duration `envconfig:"METRICS_FLUSH_INTERVAL" default:"30s" validate:"gt=0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
