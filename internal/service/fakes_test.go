package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"moviequery/internal/model"

	"github.com/rs/zerolog"
)

var errUnavailable = errors.New("completion service unavailable")

type completionCall struct {
	prompt    string
	maxTokens int
}

// fakeCompleter records calls and answers through fn
type fakeCompleter struct {
	mu    sync.Mutex
	calls []completionCall
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, completionCall{prompt: prompt, maxTokens: maxTokens})
	f.mu.Unlock()
	return f.fn(ctx, prompt)
}

func (f *fakeCompleter) Calls() []completionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completionCall(nil), f.calls...)
}

// quoted returns the text between the first and last single quote of a prompt
func quoted(prompt string) string {
	start := strings.Index(prompt, "'")
	end := strings.LastIndex(prompt, "'")
	if start < 0 || end <= start {
		return ""
	}
	return prompt[start+1 : end]
}

// echoCompleter answers correction prompts with the quoted input
func echoCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(_ context.Context, prompt string) (string, error) {
		return quoted(prompt), nil
	}}
}

// mappedCompleter answers correction prompts from a lookup of quoted inputs
func mappedCompleter(answers map[string]string) *fakeCompleter {
	return &fakeCompleter{fn: func(_ context.Context, prompt string) (string, error) {
		if out, ok := answers[quoted(prompt)]; ok {
			return out, nil
		}
		return quoted(prompt), nil
	}}
}

func failingCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(context.Context, string) (string, error) {
		return "", errUnavailable
	}}
}

// blockingCompleter waits for the request deadline
func blockingCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}}
}

func newClassifier(c Completer) *IntentClassifier {
	return NewIntentClassifier(NewEntityCorrector(c, time.Second, zerolog.Nop()))
}

// stubExecutor returns fixed rows or an error and records predicates
type stubExecutor struct {
	rows       []model.ResultRow
	err        error
	predicates []*model.Predicate
}

func (s *stubExecutor) Execute(_ context.Context, p *model.Predicate) ([]model.ResultRow, error) {
	s.predicates = append(s.predicates, p)
	return s.rows, s.err
}
