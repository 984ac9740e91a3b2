// Package project holds the per-project state record and its persistence.
package project

import "fmt"

// Sender values for ChatEntry.Sender.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// DefaultStage is the workflow marker given to new projects.
const DefaultStage = "ESR"

// ChatEntry is one turn of a project conversation, in conversation order.
type ChatEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// State is the persisted record of a project's conversation and workflow stage.
// It is rewritten in full on every save; nothing merges concurrent writers.
type State struct {
	ProjectID   string         `json:"projectId"`
	Stage       string         `json:"stage"`
	Summary     string         `json:"summary"`
	ChatHistory []ChatEntry    `json:"chatHistory"`
	Assets      map[string]any `json:"assets"`
}

// NewState returns the default record synthesized for a project with no stored state.
func NewState(projectID string) *State {
	return &State{
		ProjectID:   projectID,
		Stage:       DefaultStage,
		ChatHistory: []ChatEntry{},
		Assets:      map[string]any{},
	}
}

// Append adds a chat entry to the end of the history.
func (s *State) Append(sender, text string) {
	s.ChatHistory = append(s.ChatHistory, ChatEntry{Sender: sender, Text: text})
}

// normalize fills nil collections so the record always serializes as [] and {}.
func (s *State) normalize(projectID string) {
	if s.ProjectID == "" {
		s.ProjectID = projectID
	}
	if s.ChatHistory == nil {
		s.ChatHistory = []ChatEntry{}
	}
	if s.Assets == nil {
		s.Assets = map[string]any{}
	}
}

// WelcomeMessage is the assistant entry seeded into an empty conversation.
func WelcomeMessage(projectID string) string {
	return fmt.Sprintf("Welcome to project %s! Upload notes or ask a question to get started.", projectID)
}

// UploadMessage is the user entry recorded when notes are uploaded.
func UploadMessage(message string) string {
	if message == "" {
		return "(File Uploaded)"
	}
	return "(File Uploaded) " + message
}
