package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moviequery/internal/model"
	"moviequery/internal/utils"

	"github.com/rs/zerolog"
)

var ErrNoKeyword = errors.New("no keyword extracted from query")

// correctionPrompt is the instruction and output budget for one entity kind
type correctionPrompt struct {
	format    string
	maxTokens int
}

var correctionPrompts = map[model.EntityKind]correctionPrompt{
	model.EntityTitle:    {"Correct the spelling or complete the movie name: '%s'", 8},
	model.EntityActor:    {"Correct the spelling or complete the actor/actress name: '%s'", 6},
	model.EntityDirector: {"Correct the spelling or complete the movie director name: '%s'", 6},
	model.EntityGenre:    {"Correct the spelling of the movie genre: '%s'", 4},
}

const (
	keywordPrompt = "Extract the main keyword or complete the movie name for database search from the following user query:\n\nUser Query: \"%s\"\n\nKeyword:-"
	keywordTokens = 8
)

// EntityCorrector normalizes entity text through a completion service.
// Correction is best effort: any failure yields the input unchanged.
type EntityCorrector struct {
	completer Completer
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewEntityCorrector creates a corrector. A nil completer disables correction.
func NewEntityCorrector(completer Completer, timeout time.Duration, logger zerolog.Logger) *EntityCorrector {
	return &EntityCorrector{
		completer: completer,
		timeout:   timeout,
		logger:    logger,
	}
}

// Correct returns the corrected form of text for kind, or text itself when
// the completion service fails or returns nothing usable
func (c *EntityCorrector) Correct(ctx context.Context, text string, kind model.EntityKind) string {
	if text == "" || c.completer == nil {
		return text
	}
	p, ok := correctionPrompts[kind]
	if !ok {
		return text
	}

	logger := loggerFrom(ctx, c.logger)
	out, err := c.complete(ctx, fmt.Sprintf(p.format, text), p.maxTokens)
	if err != nil {
		event := logger.Warn()
		if errors.Is(err, ErrCompletionDisabled) {
			event = logger.Debug()
		}
		event.Err(err).Str("kind", string(kind)).Str("input", text).Msg("Entity correction failed, using input")
		return text
	}

	corrected := utils.StripQuotes(utils.FirstLine(out))
	if corrected == "" {
		logger.Warn().Str("kind", string(kind)).Str("input", text).Msg("Empty correction, using input")
		return text
	}
	if kind == model.EntityGenre {
		corrected = utils.TitleCase(corrected)
	}

	logger.Debug().Str("kind", string(kind)).Str("input", text).Str("corrected", corrected).Msg("Entity corrected")
	return corrected
}

// Keyword asks for the main search keyword of a query that matched no
// pattern. The raw first line is returned without any correction pass.
func (c *EntityCorrector) Keyword(ctx context.Context, query string) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("%w: %w", ErrNoKeyword, ErrCompletionDisabled)
	}

	out, err := c.complete(ctx, fmt.Sprintf(keywordPrompt, query), keywordTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoKeyword, err)
	}

	keyword := utils.StripQuotes(utils.FirstLine(out))
	if keyword == "" {
		return "", ErrNoKeyword
	}
	loggerFrom(ctx, c.logger).Debug().Str("query", query).Str("keyword", keyword).Msg("Keyword extracted")
	return keyword, nil
}

// complete runs one completion under the correction deadline
func (c *EntityCorrector) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.completer.Complete(ctx, prompt, maxTokens)
}

// loggerFrom prefers a request-scoped logger carried by ctx
func loggerFrom(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
