package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts holds the rendered-on-demand prompt templates.
type Prompts struct {
	analysis          *template.Template
	followUp          string
	webSearchDisabled string
}

type promptFile struct {
	Analysis          string `yaml:"analysis"`
	FollowUp          string `yaml:"follow_up"`
	WebSearchDisabled string `yaml:"web_search_disabled"`
}

// DefaultPrompts parses the embedded prompt file.
func DefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPrompts)
}

// ParsePrompts parses a YAML prompt file.
func ParsePrompts(data []byte) (*Prompts, error) {
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(pf.Analysis) == "" || strings.TrimSpace(pf.FollowUp) == "" {
		return nil, fmt.Errorf("parse prompts: analysis and follow_up are required")
	}
	tmpl, err := template.New("analysis").Option("missingkey=error").Parse(pf.Analysis)
	if err != nil {
		return nil, fmt.Errorf("parse analysis template: %w", err)
	}
	return &Prompts{
		analysis:          tmpl,
		followUp:          strings.TrimSpace(pf.FollowUp),
		webSearchDisabled: pf.WebSearchDisabled,
	}, nil
}

// Analysis renders the analyst prompt around notes. Web search is not wired,
// so the web context slot always carries the disabled marker.
func (p *Prompts) Analysis(notes string) (string, error) {
	var b strings.Builder
	err := p.analysis.Execute(&b, struct {
		Notes      string
		WebContext string
	}{Notes: notes, WebContext: p.webSearchDisabled})
	if err != nil {
		return "", fmt.Errorf("render analysis prompt: %w", err)
	}
	return b.String(), nil
}

// FollowUp returns the system instruction for follow-up questions.
func (p *Prompts) FollowUp() string {
	return p.followUp
}
