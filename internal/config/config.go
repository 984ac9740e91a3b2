package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	StoreGCS    = "gcs"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Model providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration loaded from environment variables.
// Both the orchestrator and the status checker read the same struct; each
// ignores the fields it has no use for.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// Blob store
	StoreBackend    string `envconfig:"STORE_BACKEND" default:"gcs"` // gcs, sqlite or memory
	StoreSQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"jetstream.db"`
	BucketName      string `envconfig:"BUCKET_NAME" default:"jetstream-bucket-poc-2024"`
	KeyPrefix       string `envconfig:"KEY_PREFIX" default:"Jetstream"`

	// Google Cloud
	GCPProjectID string `envconfig:"GCP_PROJECT_ID" default:"airship-ai-value-poc-2024"`
	GCPRegion    string `envconfig:"GCP_REGION" default:"us-central1"`

	// Generative model
	ModelProvider   string `envconfig:"MODEL_PROVIDER" default:"gemini"`
	ModelName       string `envconfig:"MODEL_NAME" default:"gemini-2.5-pro"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"` // Gemini API backend instead of Vertex AI
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`

	// Cross-origin
	AllowedOrigin       string `envconfig:"ALLOWED_ORIGIN" default:"https://airship-jetstream.surge.sh"`
	StatusAllowedOrigin string `envconfig:"STATUS_ALLOWED_ORIGIN" default:"*"`

	// Background analyzer
	AnalyzerWorkers   int           `envconfig:"ANALYZER_WORKERS" default:"4"`
	AnalyzerQueueSize int           `envconfig:"ANALYZER_QUEUE_SIZE" default:"100"`
	AnalyzerStepDelay time.Duration `envconfig:"ANALYZER_STEP_DELAY" default:"1s"`
	AnalyzerTimeout   time.Duration `envconfig:"ANALYZER_TIMEOUT" default:"10m"`
}

// Validate checks enumerated fields and provider credentials.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case StoreGCS:
		if c.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME is required for the gcs store backend")
		}
	case StoreSQLite:
		if c.StoreSQLitePath == "" {
			return fmt.Errorf("STORE_SQLITE_PATH is required for the sqlite store backend")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch strings.ToLower(c.ModelProvider) {
	case ProviderGemini:
		if c.GeminiAPIKey == "" && c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID or GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.ModelProvider)
	}

	if c.AnalyzerWorkers < 1 {
		return fmt.Errorf("ANALYZER_WORKERS must be at least 1, got %d", c.AnalyzerWorkers)
	}
	return nil
}

// IsDevelopment reports whether console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		if prefix == "" {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
