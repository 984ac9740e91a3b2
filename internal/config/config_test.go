// Package config tests.
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StoreGCS, cfg.StoreBackend)
	assert.Equal(t, "jetstream-bucket-poc-2024", cfg.BucketName)
	assert.Equal(t, "airship-ai-value-poc-2024", cfg.GCPProjectID)
	assert.Equal(t, "us-central1", cfg.GCPRegion)
	assert.Equal(t, "Jetstream", cfg.KeyPrefix)
	assert.Equal(t, ProviderGemini, cfg.ModelProvider)
	assert.Equal(t, "gemini-2.5-pro", cfg.ModelName)
	assert.Equal(t, "https://airship-jetstream.surge.sh", cfg.AllowedOrigin)
	assert.Equal(t, "*", cfg.StatusAllowedOrigin)
	assert.Equal(t, 4, cfg.AnalyzerWorkers)
	assert.Equal(t, time.Second, cfg.AnalyzerStepDelay)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", "/tmp/jetstream-test.db")
	t.Setenv("MODEL_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ANALYZER_STEP_DELAY", "0s")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, "/tmp/jetstream-test.db", cfg.StoreSQLitePath)
	assert.Equal(t, ProviderAnthropic, cfg.ModelProvider)
	assert.Equal(t, time.Duration(0), cfg.AnalyzerStepDelay)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("JS_HTTP_PORT", "9090")
	cfg, err := LoadWithPrefix("JS")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "s3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown STORE_BACKEND")
}

func TestLoad_AnthropicWithoutKey(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestValidate_Workers(t *testing.T) {
	cfg := Config{StoreBackend: StoreMemory, ModelProvider: ProviderGemini, GCPProjectID: "p", AnalyzerWorkers: 0}
	assert.Error(t, cfg.Validate())

	cfg.AnalyzerWorkers = 2
	assert.NoError(t, cfg.Validate())
}
