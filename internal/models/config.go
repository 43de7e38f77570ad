package models

// Config holds the application configuration
type Config struct {
	Engine         EngineConfig   `json:"engine"`
	Server         ServerConfig   `json:"server"`
	Database       DatabaseConfig `json:"database"`
	Retry          RetryConfig    `json:"retry"`
	Tracing        TracingConfig  `json:"tracing"`
	LogLevel       string         `json:"log_level"`
	RetentionHours int            `json:"retentionHours"`
}

// EngineConfig holds messaging engine related configuration
type EngineConfig struct {
	APIID       int32  `json:"api_id"`
	APIHash     string `json:"api_hash"`
	SessionsDir string `json:"sessions_dir"`
	UseTestDC   bool   `json:"use_test_dc"`
	Verbosity   int    `json:"verbosity"`
	DeviceModel string `json:"device_model"`
	AppVersion  string `json:"app_version"`
}

// ServerConfig holds HTTP server related configuration
type ServerConfig struct {
	Port          int    `json:"port"`
	PublicBaseURL string `json:"public_base_url"`
}

// DatabaseConfig holds database related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryConfig defines retry behavior for engine operations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
}

// ConfigError represents a configuration validation failure
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
