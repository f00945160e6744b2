// Package config defines the global configuration structure for SkyKeeper.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"skykeeper/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for SkyKeeper.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skykeeper-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Weather       WeatherConfig
	Auth          AuthConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// WeatherConfig holds the upstream weather provider settings. The API key is
// held server-side only; clients never see provider credentials.
type WeatherConfig struct {
	APIKey  SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"url"`
	Timeout time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"10s"`
}

// AuthConfig holds token signing and password hashing parameters.
type AuthConfig struct {
	JWTSecret  SecretString  `envconfig:"JWT_SECRET" validate:"required,min=32"`
	TokenTTL   time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	BcryptCost int           `envconfig:"AUTH_BCRYPT_COST" default:"12" validate:"min=4,max=31"`
}

// AWSConfig holds regional configuration for SSM secret resolution and
// CloudWatch metrics. Empty endpoint URL means real AWS; LocalStack support
// for local development.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds metrics emission settings.
type ObservabilityConfig struct {
	MetricsEnabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"SkyKeeper"`
}

// BuildInfo carries compile-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes configuration loading failures for diagnostics.
type ConfigErrorType string

const (
	ErrParsing       ConfigErrorType = "parsing"
	ErrValidation    ConfigErrorType = "validation"
	ErrSSMResolution ConfigErrorType = "ssm_resolution"
)
