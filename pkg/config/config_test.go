package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VALIDATOR_CONFIG", "LOG_LEVEL", "REFERENCE_ARTIFACT_KEY", "SCRATCH_DIR", "HASH_ALGORITHM",
		"PARALLEL_PREPARE", "ARTIFACT_STORAGE_TYPE", "AWS_REGION", "ARTIFACT_S3_REGION",
		"ARTIFACT_S3_ENDPOINT", "ARTIFACT_FS_ROOT", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_INSECURE", "OTEL_SERVICE_NAME", "DEPLOYMENT_ENV",
	} {
		t.Setenv(key, "")
	}
}

// TestLoad_Defaults verifies that Load() boots with the pipeline defaults
// when nothing is configured.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "test-artifact/artifact.zip", cfg.ReferenceKey)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.False(t, cfg.Telemetry.Enabled)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

// TestLoad_Overrides verifies that environment variables override defaults.
func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFERENCE_ARTIFACT_KEY", "golden/artifact.zip")
	t.Setenv("PARALLEL_PREPARE", "false")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "http://localstack:4566")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "golden/artifact.zip", cfg.ReferenceKey)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "eu-west-1", cfg.Orchestrator.Region)
	assert.Equal(t, "http://localstack:4566", cfg.Storage.Endpoint)
	assert.True(t, cfg.Telemetry.Enabled)

	fc := cfg.FetcherConfig()
	assert.Equal(t, artifacts.StoreTypeS3, fc.Type)
	assert.Equal(t, "http://localstack:4566", fc.Endpoint)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "validator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reference_key: from-file.zip\nlog_level: WARN\n"), 0o644))
	t.Setenv("VALIDATOR_CONFIG", path)
	t.Setenv("LOG_LEVEL", "ERROR")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file.zip", cfg.ReferenceKey)
	assert.Equal(t, "ERROR", cfg.LogLevel)
}

func TestLoad_InvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARALLEL_PREPARE", "sometimes")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARALLEL_PREPARE")
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	cfg.Storage.Type = "azure"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Storage.Type = "fs"
	assert.Error(t, cfg.Validate(), "fs without root")
	cfg.Storage.Root = "/tmp"
	assert.NoError(t, cfg.Validate())

	cfg = config.Default()
	cfg.ReferenceKey = "  "
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.LogLevel = "LOUD"
	assert.Error(t, cfg.Validate())
}
