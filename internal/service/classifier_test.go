package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"moviequery/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestIntentClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantIntent model.Intent
		wantSlots  *model.IntentSlots
	}{
		{
			name:       "overview with trailing movie word",
			query:      "Overview of The Dark Knight movie",
			wantIntent: model.IntentOverviewLookup,
			wantSlots:  &model.IntentSlots{EntityText: "the dark knight"},
		},
		{
			name:       "overview with leading movie word",
			query:      "overview of the movie Inception",
			wantIntent: model.IntentOverviewLookup,
			wantSlots:  &model.IntentSlots{EntityText: "inception"},
		},
		{
			name:       "overview inside a question",
			query:      "Can you give me the overview of Inception?",
			wantIntent: model.IntentOverviewLookup,
			wantSlots:  &model.IntentSlots{EntityText: "inception"},
		},
		{
			name:       "top movies by year",
			query:      "top 5 movies from year 2020",
			wantIntent: model.IntentTopRatedByYear,
			wantSlots:  &model.IntentSlots{Year: intPtr(2020)},
		},
		{
			name:       "actor with date range",
			query:      "movies of actor Tom Hanks from 1995 to 2005",
			wantIntent: model.IntentActorLookupWithDateRange,
			wantSlots:  &model.IntentSlots{EntityText: "tom hanks", YearFrom: intPtr(1995), YearTo: intPtr(2005)},
		},
		{
			name:       "director with reversed date range",
			query:      "movies of director Christopher Nolan between 2010 and 2000",
			wantIntent: model.IntentDirectorLookupWithDateRange,
			wantSlots:  &model.IntentSlots{EntityText: "christopher nolan", YearFrom: intPtr(2000), YearTo: intPtr(2010)},
		},
		{
			name:       "actor",
			query:      "movies of actress Meryl Streep",
			wantIntent: model.IntentActorLookup,
			wantSlots:  &model.IntentSlots{EntityText: "meryl streep"},
		},
		{
			name:       "director",
			query:      "movies by director James Cameron",
			wantIntent: model.IntentDirectorLookup,
			wantSlots:  &model.IntentSlots{EntityText: "james cameron"},
		},
		{
			name:       "genre",
			query:      "movies in genre comedy",
			wantIntent: model.IntentGenreLookup,
			wantSlots:  &model.IntentSlots{Genres: []string{"Comedy"}},
		},
		{
			name:       "catch-all treated as actor",
			query:      "movies of tom hanks",
			wantIntent: model.IntentActorLookup,
			wantSlots:  &model.IntentSlots{EntityText: "tom hanks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newClassifier(echoCompleter()).Classify(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, result.Intent)
			assert.Equal(t, tt.wantSlots, result.Slots)
			assert.Equal(t, tt.query, result.RawQuery)
		})
	}
}

func TestIntentClassifier_SpecificRulesWinOverSubsets(t *testing.T) {
	tests := []struct {
		query   string
		want    model.Intent
		notWant model.Intent
	}{
		{"movies of actor tom hanks from 1995 to 2005", model.IntentActorLookupWithDateRange, model.IntentActorLookup},
		{"movies of actress emma stone from 2010 to 2020", model.IntentActorLookupWithDateRange, model.IntentActorLookup},
		{"movies of director ridley scott from 1979 to 2000", model.IntentDirectorLookupWithDateRange, model.IntentDirectorLookup},
		{"movies of director ridley scott with rating above 7", model.IntentDirectorLookupWithRating, model.IntentDirectorLookup},
		{"movies of genre horror rated below 5", model.IntentGenreLookupWithRating, model.IntentGenreLookup},
		{"overview of the matrix movie", model.IntentOverviewLookup, model.IntentActorLookup},
	}

	classifier := newClassifier(echoCompleter())
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result, err := classifier.Classify(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Intent)
			assert.NotEqual(t, tt.notWant, result.Intent)
		})
	}
}

func TestIntentClassifier_RuleOrder(t *testing.T) {
	position := map[model.Intent]int{}
	for i, r := range rules {
		if _, seen := position[r.intent]; !seen {
			position[r.intent] = i
		}
	}

	assert.Less(t, position[model.IntentActorLookupWithDateRange], position[model.IntentActorLookup])
	assert.Less(t, position[model.IntentDirectorLookupWithDateRange], position[model.IntentDirectorLookup])
	assert.Less(t, position[model.IntentDirectorLookupWithRating], position[model.IntentDirectorLookup])
	assert.Less(t, position[model.IntentGenreLookupWithRating], position[model.IntentGenreLookup])
}

func TestIntentClassifier_GenreList(t *testing.T) {
	completer := mappedCompleter(map[string]string{
		"action": "action",
		"war":    "war",
		"drama":  "drame\nDrama is a genre",
	})

	result, err := newClassifier(completer).Classify(context.Background(), "movies of genre Action, War and Drama")
	require.NoError(t, err)
	assert.Equal(t, model.IntentGenreLookup, result.Intent)
	assert.Equal(t, []string{"Action", "War", "Drame"}, result.Slots.Genres)

	calls := completer.Calls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, 4, c.maxTokens)
	}
}

func TestIntentClassifier_Ratings(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantThreshold string
		wantDirection model.RatingDirection
	}{
		{"integer above", "movies of genre drama with rating above 8", "8", model.RatingAbove},
		{"decimal below", "movies of director david lynch with rating below 6.5", "6.5", model.RatingBelow},
		{"greater than", "movies of genre sci-fi rated greater than 7.25", "7.25", model.RatingAbove},
		{"under", "movies of genre horror with a rating under 4", "4", model.RatingBelow},
	}

	classifier := newClassifier(echoCompleter())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := classifier.Classify(context.Background(), tt.query)
			require.NoError(t, err)
			require.NotNil(t, result.Slots.RatingThreshold)
			assert.True(t, decimal.RequireFromString(tt.wantThreshold).Equal(*result.Slots.RatingThreshold),
				"got %s", result.Slots.RatingThreshold)
			assert.Equal(t, tt.wantDirection, result.Slots.RatingDirection)
		})
	}
}

func TestIntentClassifier_MalformedRating(t *testing.T) {
	queries := []string{
		"movies of genre drama with rating above eight",
		"movies of director nolan with rating below 7.5.1",
		"movies of genre comedy rated over -3",
	}

	classifier := newClassifier(echoCompleter())
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := classifier.Classify(context.Background(), q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparsableRating), "got %v", err)
		})
	}
}

func TestIntentClassifier_YearIsNotCorrected(t *testing.T) {
	completer := echoCompleter()

	result, err := newClassifier(completer).Classify(context.Background(), "top 5 movies from year 2020")
	require.NoError(t, err)
	assert.Equal(t, 2020, *result.Slots.Year)
	assert.Empty(t, completer.Calls())
}

func TestIntentClassifier_CorrectionFailureKeepsRawText(t *testing.T) {
	completer := failingCompleter()

	result, err := newClassifier(completer).Classify(context.Background(), "movies of actor tom hnaks")
	require.NoError(t, err)
	assert.Equal(t, model.IntentActorLookup, result.Intent)
	assert.Equal(t, "tom hnaks", result.Slots.EntityText)
	assert.Len(t, completer.Calls(), 1)
}

func TestIntentClassifier_Fallback(t *testing.T) {
	completer := &fakeCompleter{fn: func(_ context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "main keyword") {
			t.Errorf("unexpected prompt %q", prompt)
		}
		return ` "Interstellar"` + "\nSpace movie", nil
	}}

	result, err := newClassifier(completer).Classify(context.Background(), "that film about a wormhole")
	require.NoError(t, err)
	assert.Equal(t, model.IntentFreeTextFallback, result.Intent)
	assert.Equal(t, "Interstellar", result.Slots.EntityText)

	calls := completer.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].prompt, `User Query: "that film about a wormhole"`)
	assert.Equal(t, 8, calls[0].maxTokens)
}

func TestIntentClassifier_FallbackFailure(t *testing.T) {
	tests := []struct {
		name      string
		completer Completer
	}{
		{"service error", failingCompleter()},
		{"empty output", &fakeCompleter{fn: func(context.Context, string) (string, error) { return "  \n", nil }}},
		{"no service", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClassifier(tt.completer).Classify(context.Background(), "something vague")
			assert.ErrorIs(t, err, ErrNoKeyword)
		})
	}
}

func TestIntentClassifier_EmptyQuery(t *testing.T) {
	_, err := newClassifier(echoCompleter()).Classify(context.Background(), "  ?  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "movies of tom hanks", Normalize("  Movies   of Tom\tHanks?! "))
}
