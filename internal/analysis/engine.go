package analysis

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

// Runner executes a single job. Abort records a job that ended without
// reaching a result of its own, such as one that panicked.
type Runner interface {
	Run(ctx context.Context, job Job)
	Abort(ctx context.Context, job Job, cause error)
}

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single job. Zero means 10 minutes.
	Timeout time.Duration
}

// Engine runs jobs on a fixed pool of workers fed by a bounded queue. Jobs
// are detached from the request that submitted them and are only observable
// through their status records.
type Engine struct {
	queue   chan Job
	workers int
	timeout time.Duration
	runner  Runner
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.RWMutex // guards running against Submit/Stop races
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates a new engine.
func NewEngine(cfg EngineConfig, runner Runner, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Engine{
		queue:   make(chan Job, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		runner:  runner,
		metrics: m,
		logger:  logger.With().Str("component", "analysis_engine").Logger(),
	}
}

// Start launches worker goroutines. Cancelling ctx cancels running jobs.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running.Store(true)

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	e.logger.Info().Int("workers", e.workers).Int("queue_size", cap(e.queue)).Msg("analysis engine started")
}

// Stop cancels running jobs, waits for workers and fails whatever is still
// queued so that no task is left pending forever.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running.Swap(false) {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()

	drained := 0
	for {
		select {
		case job := <-e.queue:
			e.run(e.ctx, job, e.logger)
			drained++
		default:
			e.metrics.SetQueueDepth(0)
			e.logger.Info().Int("drained", drained).Msg("analysis engine stopped")
			return
		}
	}
}

// Submit enqueues job. It fails with ErrQueueFull when every slot is taken and
// with ErrUnavailable when the engine is not running.
func (e *Engine) Submit(job Job) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running.Load() {
		return fmt.Errorf("analysis engine not running: %w", jserrors.ErrUnavailable)
	}

	select {
	case e.queue <- job:
		e.metrics.SetQueueDepth(len(e.queue))
		e.logger.Info().
			Str("task_id", job.TaskID).
			Str("project_id", job.ProjectID).
			Msg("analysis enqueued")
		return nil
	default:
		e.logger.Warn().Str("task_id", job.TaskID).Msg("analysis queue full")
		return jserrors.ErrQueueFull
	}
}

// QueueLen returns the number of jobs waiting for a worker.
func (e *Engine) QueueLen() int {
	return len(e.queue)
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	log := e.logger.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")

	for {
		select {
		case <-e.ctx.Done():
			log.Debug().Msg("worker stopping")
			return
		case job := <-e.queue:
			e.metrics.SetQueueDepth(len(e.queue))
			e.execute(job, log)
		}
	}
}

func (e *Engine) execute(job Job, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()

	started := time.Now()
	e.run(ctx, job, log)
	log.Debug().
		Str("task_id", job.TaskID).
		Dur("duration", time.Since(started)).
		Msg("job finished")
}

// run calls the runner and turns a panic into an aborted job.
func (e *Engine) run(ctx context.Context, job Job, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("task_id", job.TaskID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("analysis panicked")
			e.runner.Abort(ctx, job, fmt.Errorf("%v", r))
		}
	}()
	e.runner.Run(ctx, job)
}
