package model

import "github.com/shopspring/decimal"

// Intent is the classified purpose of a user query
type Intent string

const (
	IntentOverviewLookup              Intent = "overview_lookup"
	IntentTopRatedByYear              Intent = "top_rated_by_year"
	IntentActorLookup                 Intent = "actor_lookup"
	IntentActorLookupWithDateRange    Intent = "actor_lookup_with_date_range"
	IntentDirectorLookup              Intent = "director_lookup"
	IntentDirectorLookupWithDateRange Intent = "director_lookup_with_date_range"
	IntentDirectorLookupWithRating    Intent = "director_lookup_with_rating"
	IntentGenreLookup                 Intent = "genre_lookup"
	IntentGenreLookupWithRating       Intent = "genre_lookup_with_rating"
	IntentFreeTextFallback            Intent = "free_text_fallback"
)

// RatingDirection is the side of a rating threshold a query asks for
type RatingDirection string

const (
	RatingAbove RatingDirection = "above"
	RatingBelow RatingDirection = "below"
)

// EntityKind selects the correction prompt for a slot
type EntityKind string

const (
	EntityTitle    EntityKind = "title"
	EntityActor    EntityKind = "actor"
	EntityDirector EntityKind = "director"
	EntityGenre    EntityKind = "genre"
)

// IntentResult represents the classified intent of a natural language query
type IntentResult struct {
	Intent   Intent       `json:"intent"`
	Slots    *IntentSlots `json:"slots"`
	RawQuery string       `json:"raw_query"`
}

// IntentSlots represents structured values extracted from a query.
// Which fields are set depends on the intent.
type IntentSlots struct {
	EntityText      string           `json:"entity_text,omitempty"`
	Year            *int             `json:"year,omitempty"`
	YearFrom        *int             `json:"year_from,omitempty"`
	YearTo          *int             `json:"year_to,omitempty"`
	RatingThreshold *decimal.Decimal `json:"rating_threshold,omitempty"`
	RatingDirection RatingDirection  `json:"rating_direction,omitempty"`
	Genres          []string         `json:"genres,omitempty"`
}
