package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/jetstream/internal/blob"
	jserrors "github.com/p-blackswan/jetstream/internal/errors"
	"github.com/p-blackswan/jetstream/internal/llm/llmtest"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

type funcRunner func(ctx context.Context, job Job)

func (f funcRunner) Run(ctx context.Context, job Job) { f(ctx, job) }

func (f funcRunner) Abort(context.Context, Job, error) {}

// abortRecorder wraps a funcRunner and keeps the causes passed to Abort.
type abortRecorder struct {
	funcRunner
	mu     sync.Mutex
	causes map[string]string
}

func (r *abortRecorder) Abort(_ context.Context, job Job, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.causes == nil {
		r.causes = map[string]string{}
	}
	r.causes[job.TaskID] = cause.Error()
}

func (r *abortRecorder) cause(taskID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.causes[taskID]
	return c, ok
}

func newTestEngine(t *testing.T, cfg EngineConfig, r Runner) *Engine {
	t.Helper()
	e := NewEngine(cfg, r, metrics.New(), zerolog.Nop())
	e.Start(t.Context())
	t.Cleanup(e.Stop)
	return e
}

func TestEngine_RunsSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	e := newTestEngine(t, EngineConfig{Workers: 2, QueueSize: 10}, funcRunner(func(_ context.Context, job Job) {
		mu.Lock()
		seen[job.TaskID] = true
		mu.Unlock()
	}))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, e.Submit(Job{TaskID: id}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_QueueFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	e := newTestEngine(t, EngineConfig{Workers: 1, QueueSize: 1}, funcRunner(func(ctx context.Context, job Job) {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}))
	defer close(release)

	require.NoError(t, e.Submit(Job{TaskID: "running"}))
	<-started
	require.NoError(t, e.Submit(Job{TaskID: "queued"}))
	assert.Equal(t, 1, e.QueueLen())

	err := e.Submit(Job{TaskID: "rejected"})
	assert.ErrorIs(t, err, jserrors.ErrQueueFull)
}

func TestEngine_SubmitWhenStopped(t *testing.T) {
	e := NewEngine(EngineConfig{}, funcRunner(func(context.Context, Job) {}), metrics.New(), zerolog.Nop())

	err := e.Submit(Job{TaskID: "x"})
	assert.ErrorIs(t, err, jserrors.ErrUnavailable)
}

func TestEngine_StopCancelsAndDrains(t *testing.T) {
	var mu sync.Mutex
	var cancelled []string
	started := make(chan struct{}, 1)

	e := NewEngine(EngineConfig{Workers: 1, QueueSize: 5}, funcRunner(func(ctx context.Context, job Job) {
		if job.TaskID == "long" {
			started <- struct{}{}
		}
		<-ctx.Done()
		mu.Lock()
		cancelled = append(cancelled, job.TaskID)
		mu.Unlock()
	}), metrics.New(), zerolog.Nop())
	e.Start(context.Background())

	require.NoError(t, e.Submit(Job{TaskID: "long"}))
	<-started
	require.NoError(t, e.Submit(Job{TaskID: "waiting"}))

	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"long", "waiting"}, cancelled)
	assert.Zero(t, e.QueueLen())
}

func TestEngine_JobTimeout(t *testing.T) {
	done := make(chan error, 1)
	e := newTestEngine(t, EngineConfig{Workers: 1, QueueSize: 1, Timeout: 20 * time.Millisecond}, funcRunner(func(ctx context.Context, job Job) {
		<-ctx.Done()
		done <- ctx.Err()
	}))

	require.NoError(t, e.Submit(Job{TaskID: "slow"}))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job was not timed out")
	}
}

func TestEngine_RecoversPanics(t *testing.T) {
	ran := make(chan string, 2)
	e := newTestEngine(t, EngineConfig{Workers: 1, QueueSize: 2}, funcRunner(func(_ context.Context, job Job) {
		if job.TaskID == "boom" {
			panic("boom")
		}
		ran <- job.TaskID
	}))

	require.NoError(t, e.Submit(Job{TaskID: "boom"}))
	require.NoError(t, e.Submit(Job{TaskID: "after"}))

	select {
	case id := <-ran:
		assert.Equal(t, "after", id)
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestEngine_PanicAbortsJob(t *testing.T) {
	r := &abortRecorder{funcRunner: func(context.Context, Job) { panic("boom") }}
	e := newTestEngine(t, EngineConfig{Workers: 1, QueueSize: 1}, r)

	require.NoError(t, e.Submit(Job{TaskID: "boom"}))
	require.Eventually(t, func() bool {
		_, ok := r.cause("boom")
		return ok
	}, time.Second, 5*time.Millisecond)

	cause, _ := r.cause("boom")
	assert.Equal(t, "boom", cause)
}

func TestEngine_PanicDuringDrain(t *testing.T) {
	started := make(chan struct{}, 1)
	r := &abortRecorder{funcRunner: func(ctx context.Context, job Job) {
		if job.TaskID == "long" {
			started <- struct{}{}
			<-ctx.Done()
			return
		}
		panic("queued job exploded")
	}}
	e := NewEngine(EngineConfig{Workers: 1, QueueSize: 2}, r, metrics.New(), zerolog.Nop())
	e.Start(context.Background())

	require.NoError(t, e.Submit(Job{TaskID: "long"}))
	<-started
	require.NoError(t, e.Submit(Job{TaskID: "queued"}))

	assert.NotPanics(t, e.Stop)
	cause, ok := r.cause("queued")
	require.True(t, ok)
	assert.Equal(t, "queued job exploded", cause)
}

func TestEngine_PanickingAnalysisRecordsError(t *testing.T) {
	gen := &llmtest.Fake{Hook: func(context.Context) error { panic("model client exploded") }}
	a, tracker := newTestAnalyzer(t, blob.NewMemoryStore(), gen)
	e := newTestEngine(t, EngineConfig{Workers: 1, QueueSize: 1}, a)

	require.NoError(t, e.Submit(Job{TaskID: "t1", Notes: "notes"}))

	require.Eventually(t, func() bool {
		raw, err := tracker.Raw(context.Background(), "t1")
		if err != nil {
			return false
		}
		var rec Record
		return json.Unmarshal(raw, &rec) == nil && rec.Status == ErrorPrefix+"model client exploded"
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, readRecord(t, tracker, "t1").Result)
}

func TestEngine_StartTwiceIsNoop(t *testing.T) {
	e := newTestEngine(t, EngineConfig{Workers: 1}, funcRunner(func(context.Context, Job) {}))
	e.Start(t.Context())
	require.NoError(t, e.Submit(Job{TaskID: "x"}))
}
