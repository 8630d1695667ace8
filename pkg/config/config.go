package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/event"
	"github.com/Mindburn-Labs/artifact-validator/pkg/fingerprint"
)

// Config holds validator configuration.
type Config struct {
	LogLevel      string `yaml:"log_level"`
	ReferenceKey  string `yaml:"reference_key"`
	ScratchRoot   string `yaml:"scratch_root"`
	HashAlgorithm string `yaml:"hash_algorithm"`
	Parallel      bool   `yaml:"parallel"`

	Storage      StorageConfig      `yaml:"storage"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Type     string `yaml:"type"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // MinIO, LocalStack
	Root     string `yaml:"root"`     // fs backend only
}

// OrchestratorConfig configures the job result client.
type OrchestratorConfig struct {
	Region string `yaml:"region"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:      "INFO",
		ReferenceKey:  event.DefaultReferenceKey,
		HashAlgorithm: string(fingerprint.SHA256),
		Parallel:      true,
		Storage: StorageConfig{
			Type:   string(artifacts.StoreTypeS3),
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "artifact-validator",
			Environment: "development",
		},
	}
}

// Load builds configuration from defaults, then the YAML file named by
// VALIDATOR_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("VALIDATOR_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.ReferenceKey, "REFERENCE_ARTIFACT_KEY")
	setString(&cfg.ScratchRoot, "SCRATCH_DIR")
	setString(&cfg.HashAlgorithm, "HASH_ALGORITHM")
	if err := setBool(&cfg.Parallel, "PARALLEL_PREPARE"); err != nil {
		return nil, err
	}

	setString(&cfg.Storage.Type, "ARTIFACT_STORAGE_TYPE")
	setString(&cfg.Storage.Region, "AWS_REGION")
	setString(&cfg.Storage.Region, "ARTIFACT_S3_REGION")
	setString(&cfg.Storage.Endpoint, "ARTIFACT_S3_ENDPOINT")
	setString(&cfg.Storage.Root, "ARTIFACT_FS_ROOT")

	setString(&cfg.Orchestrator.Region, "AWS_REGION")

	if err := setBool(&cfg.Telemetry.Enabled, "OTEL_ENABLED"); err != nil {
		return nil, err
	}
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if err := setBool(&cfg.Telemetry.Insecure, "OTEL_INSECURE"); err != nil {
		return nil, err
	}
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setString(&cfg.Telemetry.Environment, "DEPLOYMENT_ENV")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can honour.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ReferenceKey) == "" {
		return fmt.Errorf("config: reference_key must not be empty")
	}
	if _, err := fingerprint.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch artifacts.StoreType(c.Storage.Type) {
	case artifacts.StoreTypeS3, artifacts.StoreTypeGCS:
	case artifacts.StoreTypeFS:
		if c.Storage.Root == "" {
			return fmt.Errorf("config: storage.root is required for fs storage")
		}
	default:
		return fmt.Errorf("config: unsupported storage type %q", c.Storage.Type)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// FetcherConfig maps storage settings onto the artifacts factory.
func (c *Config) FetcherConfig() artifacts.FetcherConfig {
	return artifacts.FetcherConfig{
		Type:     artifacts.StoreType(c.Storage.Type),
		Region:   c.Storage.Region,
		Endpoint: c.Storage.Endpoint,
		Root:     c.Storage.Root,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}
