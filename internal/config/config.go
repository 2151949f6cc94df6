// Package config provides configuration loading and validation.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

// PipelineConfig holds the ingest/aggregate/fan-out pipeline settings
// described in the external interfaces section of the specification.
type PipelineConfig struct {
	Symbol         string `mapstructure:"symbol"`
	Depth          int    `mapstructure:"depth"`
	DataLifetimeMS int64  `mapstructure:"data_lifetime_ms"`
	Port           int    `mapstructure:"port"`
	BinanceBaseURL string `mapstructure:"binance_api_base_url"`
	BitstampURL    string `mapstructure:"bitstamp_api_url"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"` // stdout | zipkin | otlp-grpc | otlp-http
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ZipkinEndpoint string `mapstructure:"zipkin_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("OBA")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "APP_NAME", "OBA_APP_NAME")
	v.BindEnv("app.log_level", "LOG_LEVEL", "OBA_LOG_LEVEL")

	// Pipeline env vars use the bare names the specification mandates, so
	// a deployment following spec.md's §6 table works without an OBA_ prefix.
	v.BindEnv("pipeline.symbol", "SYMBOL")
	v.BindEnv("pipeline.depth", "DEPTH")
	v.BindEnv("pipeline.data_lifetime_ms", "DATA_LIFETIME_MS")
	v.BindEnv("pipeline.port", "PORT")
	v.BindEnv("pipeline.binance_api_base_url", "BINANCE_API_BASE_URL")
	v.BindEnv("pipeline.bitstamp_api_url", "BITSTAMP_API_URL")

	v.BindEnv("telemetry.enabled", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_exporter", "OTEL_TRACE_EXPORTER")
	v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.zipkin_endpoint", "OTEL_EXPORTER_ZIPKIN_ENDPOINT")
	v.BindEnv("telemetry.prometheus_port", "OTEL_PROMETHEUS_PORT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orderbook-aggregator")
	v.SetDefault("app.log_level", "info")

	// Defaults mirror spec.md §6 exactly.
	v.SetDefault("pipeline.symbol", "ethbtc")
	v.SetDefault("pipeline.depth", 20)
	v.SetDefault("pipeline.data_lifetime_ms", 2000)
	v.SetDefault("pipeline.port", 10000)
	v.SetDefault("pipeline.binance_api_base_url", "stream.binance.com:9443/ws")
	v.SetDefault("pipeline.bitstamp_api_url", "wss://ws.bitstamp.net")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "orderbook-aggregator")
	v.SetDefault("telemetry.trace_exporter", "stdout")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pipeline.Symbol == "" {
		return fmt.Errorf("pipeline.symbol is required")
	}
	if c.Pipeline.Depth < 0 {
		return fmt.Errorf("pipeline.depth must be >= 0")
	}
	if c.Pipeline.DataLifetimeMS < 0 {
		return fmt.Errorf("pipeline.data_lifetime_ms must be >= 0")
	}
	if c.Pipeline.Port <= 0 || c.Pipeline.Port > 65535 {
		return fmt.Errorf("pipeline.port must be a valid TCP port")
	}
	return nil
}
