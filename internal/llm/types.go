// Package llm defines the generative-model collaborator and its providers.
// Providers are interchangeable behind Generator: Gemini on Vertex AI by
// default, Anthropic as an alternative.
package llm

import "context"

// Role constants for Turn.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single message of a structured conversation.
type Turn struct {
	Role string
	Text string
}

// Generator is the text-in/text-out contract of a generative model.
// Neither method retries or streams.
type Generator interface {
	// Generate answers a single free-form prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Converse continues history with question as the newest user turn.
	// system carries the persona instructions.
	Converse(ctx context.Context, system string, history []Turn, question string) (string, error)

	// ModelID returns the current model identifier string.
	ModelID() string
}

// TurnFromSender maps a chat sender ("user"/"assistant") onto a model role.
func TurnFromSender(sender, text string) Turn {
	if sender == RoleUser {
		return Turn{Role: RoleUser, Text: text}
	}
	return Turn{Role: RoleModel, Text: text}
}

// conversationStart opens a conversation whose first stored turn is the model's.
const conversationStart = "(conversation start)"

// alternate shapes history plus question for chat APIs that require the
// first turn to come from the user and roles to alternate. Adjacent turns of
// the same role are joined.
func alternate(history []Turn, question string) []Turn {
	out := make([]Turn, 0, len(history)+2)
	add := func(role, text string) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Text += "\n\n" + text
			return
		}
		out = append(out, Turn{Role: role, Text: text})
	}
	for _, t := range history {
		role := RoleUser
		if t.Role == RoleModel {
			role = RoleModel
		}
		if len(out) == 0 && role == RoleModel {
			add(RoleUser, conversationStart)
		}
		add(role, t.Text)
	}
	add(RoleUser, question)
	return out
}
