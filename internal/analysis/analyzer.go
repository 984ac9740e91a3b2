package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/jetstream/internal/llm"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

// Job is one background analysis request.
type Job struct {
	TaskID string
	Notes  string
	// ProjectID is a context hint only; the analysis does not read project state.
	ProjectID string
}

// Analyzer performs the fixed status sequence and the single model call of an
// analysis. Its only output is the task status record.
type Analyzer struct {
	tracker   *Tracker
	gen       llm.Generator
	prompts   *llm.Prompts
	stepDelay time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// AnalyzerConfig holds the analyzer's collaborators.
type AnalyzerConfig struct {
	Tracker   *Tracker
	Generator llm.Generator
	Prompts   *llm.Prompts
	StepDelay time.Duration
	Metrics   *metrics.Metrics
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg AnalyzerConfig, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		tracker:   cfg.Tracker,
		gen:       cfg.Generator,
		prompts:   cfg.Prompts,
		stepDelay: cfg.StepDelay,
		metrics:   cfg.Metrics,
		logger:    logger.With().Str("component", "analyzer").Logger(),
	}
}

// Run executes job to completion. Any failure ends the analysis with an
// ErrorPrefix status and an empty result.
func (a *Analyzer) Run(ctx context.Context, job Job) {
	log := a.logger.With().Str("task_id", job.TaskID).Str("project_id", job.ProjectID).Logger()

	text, err := a.analyze(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		a.tracker.Update(ctx, job.TaskID, ErrorPrefix+err.Error(), "")
		a.metrics.RecordAnalysis("failed")
		return
	}

	a.tracker.Update(ctx, job.TaskID, StatusComplete, text)
	a.metrics.RecordAnalysis("complete")
	log.Info().Int("result_len", len(text)).Msg("analysis complete")
}

// Abort ends job with cause as its error status.
func (a *Analyzer) Abort(ctx context.Context, job Job, cause error) {
	a.tracker.Update(ctx, job.TaskID, ErrorPrefix+cause.Error(), "")
	a.metrics.RecordAnalysis("failed")
}

func (a *Analyzer) analyze(ctx context.Context, job Job) (string, error) {
	a.tracker.Update(ctx, job.TaskID, StatusAnalyzing, "")
	if err := a.pause(ctx); err != nil {
		return "", err
	}

	a.tracker.Update(ctx, job.TaskID, StatusChallenges, "")
	if err := a.pause(ctx); err != nil {
		return "", err
	}

	a.tracker.Update(ctx, job.TaskID, StatusStakeholders, "")

	prompt, err := a.prompts.Analysis(job.Notes)
	if err != nil {
		return "", err
	}

	text, err := a.gen.Generate(ctx, prompt)
	a.metrics.RecordModelCall("analysis", err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (a *Analyzer) pause(ctx context.Context) error {
	if a.stepDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
