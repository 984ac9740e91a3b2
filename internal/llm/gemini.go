package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
)

const defaultGeminiModel = "gemini-2.5-pro"

// GeminiConfig selects the Gemini backend. When APIKey is set the Gemini API
// is used; otherwise Vertex AI in Project/Location with ambient credentials.
type GeminiConfig struct {
	Project  string
	Location string
	APIKey   string
	Model    string
}

// GeminiProvider implements Generator on google.golang.org/genai.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGeminiProvider constructs the shared genai client.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "gemini").Logger(),
	}, nil
}

func (p *GeminiProvider) ModelID() string { return p.model }

// Generate sends prompt as a single user turn.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, genai.Text(prompt), nil)
}

// Converse sends history as alternating user/model contents followed by question.
func (p *GeminiProvider) Converse(ctx context.Context, system string, history []Turn, question string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	return p.generate(ctx, buildContents(history, question), cfg)
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", jserrors.NewProviderError("gemini", 0, "empty response")
	}
	p.logger.Debug().
		Str("model", p.model).
		Int("contents", len(contents)).
		Int("response_len", len(text)).
		Msg("gemini complete")
	return text, nil
}

func buildContents(history []Turn, question string) []*genai.Content {
	turns := alternate(history, question)
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &jserrors.ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &jserrors.ProviderError{Provider: "gemini", StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini: %w: %w", jserrors.ErrTimeout, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
