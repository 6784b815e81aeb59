package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"moviequery/internal/model"
	"moviequery/internal/utils"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrUnparsableRating = errors.New("unparsable rating")
)

const (
	yearRange  = `(?:from|between) (?:year )?(\d{4}) (?:to|and|until|till|-) (?:year )?(\d{4})`
	ratingDir  = `(above|over|greater than|more than|below|under|less than)`
	ratingPart = `(?:with )?(?:an? )?(?:tmdb )?(?:rating|rated) ` + ratingDir + ` (\S+)`
	actorHead  = `movies (?:of|with|starring|featuring) (?:the )?(?:actor|actress) `
	directHead = `movies (?:of|by|from) (?:the )?director `
	genreHead  = `movies (?:of|in) (?:the )?genres? `
)

var ratingNumber = regexp.MustCompile(`^\d+(\.\d+)?$`)

// extractor turns the submatches of a rule into slots
type extractor func(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error)

// rule pairs a matcher with its slot extractor
type rule struct {
	intent  model.Intent
	pattern *regexp.Regexp
	extract extractor
}

// rules are evaluated in order and the first match wins. Multi-slot patterns
// must stay ahead of the single-slot patterns they contain.
var rules = []rule{
	{model.IntentOverviewLookup, regexp.MustCompile(`overview of (?:the )?movie (.+)`), extractEntity(1, model.EntityTitle)},
	{model.IntentOverviewLookup, regexp.MustCompile(`overview of (.+) movie`), extractEntity(1, model.EntityTitle)},
	{model.IntentOverviewLookup, regexp.MustCompile(`overview of (.+)`), extractEntity(1, model.EntityTitle)},
	{model.IntentTopRatedByYear, regexp.MustCompile(`top (?:5 |five )?movies (?:from|of|in) (?:the )?(?:year )?(\d{4})`), extractYear},
	{model.IntentActorLookupWithDateRange, regexp.MustCompile(actorHead + `(.+?) ` + yearRange), extractEntityWithYears(model.EntityActor)},
	{model.IntentDirectorLookupWithDateRange, regexp.MustCompile(directHead + `(.+?) ` + yearRange), extractEntityWithYears(model.EntityDirector)},
	{model.IntentDirectorLookupWithRating, regexp.MustCompile(directHead + `(.+?) ` + ratingPart), extractEntityWithRating},
	{model.IntentGenreLookupWithRating, regexp.MustCompile(genreHead + `(.+?) ` + ratingPart), extractGenresWithRating},
	{model.IntentActorLookup, regexp.MustCompile(actorHead + `(.+)`), extractEntity(1, model.EntityActor)},
	{model.IntentDirectorLookup, regexp.MustCompile(directHead + `(.+)`), extractEntity(1, model.EntityDirector)},
	{model.IntentGenreLookup, regexp.MustCompile(genreHead + `(.+)`), extractGenres},
	{model.IntentActorLookup, regexp.MustCompile(`movies of (.+)`), extractEntity(1, model.EntityActor)},
}

// IntentClassifier maps a raw query to an intent and corrected slots
type IntentClassifier struct {
	corrector *EntityCorrector
}

// NewIntentClassifier creates a new intent classifier
func NewIntentClassifier(corrector *EntityCorrector) *IntentClassifier {
	return &IntentClassifier{corrector: corrector}
}

// Normalize lowercases a query, collapses whitespace and drops trailing punctuation
func Normalize(raw string) string {
	return utils.TrimPunctuation(strings.Join(strings.Fields(strings.ToLower(raw)), " "))
}

// Classify selects the first matching rule for raw and extracts its slots.
// A query no rule matches falls back to a single keyword extraction.
func (c *IntentClassifier) Classify(ctx context.Context, raw string) (*model.IntentResult, error) {
	query := Normalize(raw)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		slots, err := r.extract(ctx, c, m)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s slots: %w", r.intent, err)
		}
		return &model.IntentResult{Intent: r.intent, Slots: slots, RawQuery: raw}, nil
	}

	keyword, err := c.corrector.Keyword(ctx, query)
	if err != nil {
		return nil, err
	}
	return &model.IntentResult{
		Intent:   model.IntentFreeTextFallback,
		Slots:    &model.IntentSlots{EntityText: keyword},
		RawQuery: raw,
	}, nil
}

func extractEntity(group int, kind model.EntityKind) extractor {
	return func(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error) {
		return &model.IntentSlots{EntityText: c.corrector.Correct(ctx, strings.TrimSpace(m[group]), kind)}, nil
	}
}

func extractYear(_ context.Context, _ *IntentClassifier, m []string) (*model.IntentSlots, error) {
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, err
	}
	return &model.IntentSlots{Year: &year}, nil
}

func extractEntityWithYears(kind model.EntityKind) extractor {
	return func(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error) {
		from, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, err
		}
		to, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, err
		}
		if from > to {
			from, to = to, from
		}
		return &model.IntentSlots{
			EntityText: c.corrector.Correct(ctx, strings.TrimSpace(m[1]), kind),
			YearFrom:   &from,
			YearTo:     &to,
		}, nil
	}
}

func extractEntityWithRating(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error) {
	threshold, dir, err := parseRating(m[2], m[3])
	if err != nil {
		return nil, err
	}
	return &model.IntentSlots{
		EntityText:      c.corrector.Correct(ctx, strings.TrimSpace(m[1]), model.EntityDirector),
		RatingThreshold: &threshold,
		RatingDirection: dir,
	}, nil
}

func extractGenres(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error) {
	return &model.IntentSlots{Genres: c.correctGenres(ctx, m[1])}, nil
}

func extractGenresWithRating(ctx context.Context, c *IntentClassifier, m []string) (*model.IntentSlots, error) {
	threshold, dir, err := parseRating(m[2], m[3])
	if err != nil {
		return nil, err
	}
	return &model.IntentSlots{
		Genres:          c.correctGenres(ctx, m[1]),
		RatingThreshold: &threshold,
		RatingDirection: dir,
	}, nil
}

// correctGenres splits a genre list and corrects each element in order
func (c *IntentClassifier) correctGenres(ctx context.Context, list string) []string {
	items := utils.SplitList(list)
	genres := make([]string, 0, len(items))
	for _, g := range items {
		genres = append(genres, c.corrector.Correct(ctx, g, model.EntityGenre))
	}
	return genres
}

// parseRating reads a direction word and an integer or decimal threshold
func parseRating(direction, value string) (decimal.Decimal, model.RatingDirection, error) {
	if !ratingNumber.MatchString(value) {
		return decimal.Decimal{}, "", fmt.Errorf("%w: %q", ErrUnparsableRating, value)
	}
	threshold, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("%w: %q: %v", ErrUnparsableRating, value, err)
	}

	switch direction {
	case "above", "over", "greater than", "more than":
		return threshold, model.RatingAbove, nil
	case "below", "under", "less than":
		return threshold, model.RatingBelow, nil
	}
	return decimal.Decimal{}, "", fmt.Errorf("%w: direction %q", ErrUnparsableRating, direction)
}
