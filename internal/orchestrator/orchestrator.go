// Package orchestrator decides which flow serves a request and runs it:
// initial analysis (asynchronous), follow-up question (synchronous) or idle.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/jetstream/internal/analysis"
	jserrors "github.com/p-blackswan/jetstream/internal/errors"
	"github.com/p-blackswan/jetstream/internal/llm"
	"github.com/p-blackswan/jetstream/internal/metrics"
	"github.com/p-blackswan/jetstream/internal/project"
)

// Flow names, also used as metric labels.
const (
	FlowAnalysis = "analysis"
	FlowFollowUp = "follow_up"
	FlowIdle     = "idle"
)

// FollowUpApology replaces the assistant reply when the model call fails.
const FollowUpApology = "Sorry, I encountered an error trying to respond based on our conversation."

// Request is a decoded orchestrator request.
type Request struct {
	ProjectID   string              `json:"projectId"`
	Message     string              `json:"message"`
	FileContent string              `json:"fileContent"`
	ChatHistory []project.ChatEntry `json:"chatHistory"`
}

// Result is the outcome of a flow. TaskID is set for FlowAnalysis, ChatHistory
// for the other two.
type Result struct {
	Flow        string
	TaskID      string
	ChatHistory []project.ChatEntry
}

// Submitter accepts background analyses.
type Submitter interface {
	Submit(job analysis.Job) error
}

// Service runs the three flows against injected collaborators.
type Service struct {
	projects *project.Repository
	engine   Submitter
	gen      llm.Generator
	prompts  *llm.Prompts
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	newID    func() string
}

// Config holds the service's collaborators.
type Config struct {
	Projects  *project.Repository
	Engine    Submitter
	Generator llm.Generator
	Prompts   *llm.Prompts
	Metrics   *metrics.Metrics
}

// New creates a Service.
func New(cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		projects: cfg.Projects,
		engine:   cfg.Engine,
		gen:      cfg.Generator,
		prompts:  cfg.Prompts,
		metrics:  cfg.Metrics,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		newID:    func() string { return uuid.New().String() },
	}
}

// SelectFlow applies the dispatch order: file content wins over a message,
// a message wins over nothing.
func SelectFlow(req Request) string {
	switch {
	case req.FileContent != "":
		return FlowAnalysis
	case req.Message != "":
		return FlowFollowUp
	default:
		return FlowIdle
	}
}

// Handle validates req, loads project state and runs the selected flow.
// Validation failures wrap jserrors.ErrInvalidInput and happen before any
// side effect.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	if req.ProjectID == "" {
		return nil, jserrors.Invalid("projectId is required")
	}
	req.Message = strings.TrimSpace(req.Message)

	switch SelectFlow(req) {
	case FlowAnalysis:
		return s.analyze(ctx, req)
	case FlowFollowUp:
		return s.followUp(ctx, req)
	default:
		return s.idle(ctx, req)
	}
}

func (s *Service) analyze(ctx context.Context, req Request) (*Result, error) {
	notes := req.FileContent
	if req.Message != "" {
		notes += "\n\n--- Additional Notes ---\n" + req.Message
	}
	if strings.TrimSpace(notes) == "" {
		return nil, jserrors.Invalid("No content provided in file to analyze")
	}

	st := s.projects.Load(ctx, req.ProjectID)
	st.Append(project.SenderUser, project.UploadMessage(req.Message))

	taskID := s.newID()
	log := s.logger.With().Str("project_id", req.ProjectID).Str("task_id", taskID).Logger()

	if err := s.engine.Submit(analysis.Job{TaskID: taskID, Notes: notes, ProjectID: req.ProjectID}); err != nil {
		log.Error().Err(err).Msg("failed to start background analysis")
		return nil, err
	}
	log.Info().Msg("background analysis started")

	s.save(ctx, st, log)
	return &Result{Flow: FlowAnalysis, TaskID: taskID}, nil
}

func (s *Service) followUp(ctx context.Context, req Request) (*Result, error) {
	log := s.logger.With().Str("project_id", req.ProjectID).Logger()
	st := s.projects.Load(ctx, req.ProjectID)

	history := conversation(req, st)
	prior := history[:len(history)-1]

	turns := make([]llm.Turn, 0, len(prior))
	for _, e := range prior {
		turns = append(turns, llm.TurnFromSender(e.Sender, e.Text))
	}

	log.Info().Int("history_len", len(prior)).Msg("handling follow-up question")
	reply, err := s.gen.Converse(ctx, s.prompts.FollowUp(), turns, req.Message)
	s.metrics.RecordModelCall("follow_up", err)
	if err != nil {
		log.Error().Err(err).Msg("follow-up response failed")
		reply = FollowUpApology
	}

	history = append(history, project.ChatEntry{Sender: project.SenderAssistant, Text: reply})
	st.ChatHistory = history

	s.save(ctx, st, log)
	log.Info().Msg("follow-up response generated")
	return &Result{Flow: FlowFollowUp, ChatHistory: st.ChatHistory}, nil
}

func (s *Service) idle(ctx context.Context, req Request) (*Result, error) {
	log := s.logger.With().Str("project_id", req.ProjectID).Logger()
	st := s.projects.Load(ctx, req.ProjectID)

	if len(st.ChatHistory) == 0 {
		st.Append(project.SenderAssistant, project.WelcomeMessage(req.ProjectID))
	}
	s.save(ctx, st, log)
	return &Result{Flow: FlowIdle, ChatHistory: st.ChatHistory}, nil
}

// conversation returns the history ending with the current user turn. A
// caller-supplied history is authoritative; if it already ends with this
// question it is used as is, otherwise the question is appended. Without one
// the stored history is used.
func conversation(req Request, st *project.State) []project.ChatEntry {
	current := project.ChatEntry{Sender: project.SenderUser, Text: req.Message}

	base := st.ChatHistory
	if len(req.ChatHistory) > 0 {
		base = req.ChatHistory
		if base[len(base)-1] == current {
			return append([]project.ChatEntry(nil), base...)
		}
	}

	history := make([]project.ChatEntry, 0, len(base)+2)
	history = append(history, base...)
	return append(history, current)
}

// save persists st. Store failures are logged, not surfaced: the response
// still carries what the caller needs.
func (s *Service) save(ctx context.Context, st *project.State, log zerolog.Logger) {
	if err := s.projects.Save(ctx, st); err != nil {
		log.Error().Err(err).Msg("failed to persist project state")
	}
}

// IsQueueFull reports whether err means the analysis engine had no capacity.
func IsQueueFull(err error) bool {
	return errors.Is(err, jserrors.ErrQueueFull) || errors.Is(err, jserrors.ErrUnavailable)
}
