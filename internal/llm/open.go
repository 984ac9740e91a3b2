package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Options selects and configures a provider.
type Options struct {
	Provider        string // gemini or anthropic
	Model           string
	GCPProject      string
	GCPRegion       string
	GeminiAPIKey    string
	AnthropicAPIKey string
}

// Open constructs the provider named by opts.Provider.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Generator, error) {
	switch strings.ToLower(opts.Provider) {
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{
			Project:  opts.GCPProject,
			Location: opts.GCPRegion,
			APIKey:   opts.GeminiAPIKey,
			Model:    opts.Model,
		}, logger)
	case "anthropic":
		model := opts.Model
		if strings.HasPrefix(model, "gemini") {
			model = ""
		}
		return NewAnthropicProvider(opts.AnthropicAPIKey,
			WithModel(model),
			WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", opts.Provider)
	}
}
