package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"moviequery/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCorrector_Prompts(t *testing.T) {
	tests := []struct {
		kind       model.EntityKind
		wantPrompt string
		wantTokens int
	}{
		{model.EntityTitle, "complete the movie name: 'incepton'", 8},
		{model.EntityActor, "complete the actor/actress name: 'incepton'", 6},
		{model.EntityDirector, "complete the movie director name: 'incepton'", 6},
		{model.EntityGenre, "movie genre: 'incepton'", 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			completer := echoCompleter()
			NewEntityCorrector(completer, time.Second, zerolog.Nop()).Correct(context.Background(), "incepton", tt.kind)

			calls := completer.Calls()
			require.Len(t, calls, 1)
			assert.True(t, strings.HasSuffix(calls[0].prompt, tt.wantPrompt), calls[0].prompt)
			assert.Equal(t, tt.wantTokens, calls[0].maxTokens)
		})
	}
}

func TestEntityCorrector_Output(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		kind   model.EntityKind
		want   string
	}{
		{"first line only", "\nInception\nThe 2010 film", model.EntityTitle, "Inception"},
		{"quotes stripped", `"Tom Hanks"`, model.EntityActor, "Tom Hanks"},
		{"genre title cased", "science fiction", model.EntityGenre, "Science Fiction"},
		{"empty answer keeps input", "   ", model.EntityDirector, "incepton"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{fn: func(context.Context, string) (string, error) { return tt.answer, nil }}
			got := NewEntityCorrector(completer, time.Second, zerolog.Nop()).Correct(context.Background(), "incepton", tt.kind)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityCorrector_FailuresReturnInput(t *testing.T) {
	tests := []struct {
		name      string
		completer Completer
	}{
		{"service error", failingCompleter()},
		{"deadline exceeded", blockingCompleter()},
		{"no service", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrector := NewEntityCorrector(tt.completer, 20*time.Millisecond, zerolog.Nop())

			start := time.Now()
			got := corrector.Correct(context.Background(), "tom hnaks", model.EntityActor)
			assert.Equal(t, "tom hnaks", got)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestEntityCorrector_EmptyInputSkipsService(t *testing.T) {
	completer := echoCompleter()
	got := NewEntityCorrector(completer, time.Second, zerolog.Nop()).Correct(context.Background(), "", model.EntityTitle)

	assert.Equal(t, "", got)
	assert.Empty(t, completer.Calls())
}
