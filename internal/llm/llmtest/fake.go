// Package llmtest provides a scriptable Generator for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/p-blackswan/jetstream/internal/llm"
)

// Call records one invocation of the fake.
type Call struct {
	Prompt   string
	System   string
	History  []llm.Turn
	Question string
}

// Fake is a Generator returning canned replies.
type Fake struct {
	mu    sync.Mutex
	Reply string
	Err   error
	// Hook, when set, runs before the reply is returned and may block.
	Hook  func(ctx context.Context) error
	calls []Call
}

func (f *Fake) ModelID() string { return "fake" }

func (f *Fake) Generate(ctx context.Context, prompt string) (string, error) {
	return f.respond(ctx, Call{Prompt: prompt})
}

func (f *Fake) Converse(ctx context.Context, system string, history []llm.Turn, question string) (string, error) {
	h := make([]llm.Turn, len(history))
	copy(h, history)
	return f.respond(ctx, Call{System: system, History: h, Question: question})
}

func (f *Fake) respond(ctx context.Context, c Call) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hook, reply, err := f.Hook, f.Reply, f.Err
	f.mu.Unlock()

	if hook != nil {
		if hErr := hook(ctx); hErr != nil {
			return "", hErr
		}
	}
	return reply, err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}
