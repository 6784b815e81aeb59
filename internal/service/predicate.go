package service

import (
	"errors"
	"fmt"

	"moviequery/internal/model"
)

var (
	ErrUnknownIntent = errors.New("unknown intent")
	ErrMissingSlot   = errors.New("missing slot")
)

// Row limits per intent
const (
	LimitOverview          = 7
	LimitTopRatedByYear    = 5
	LimitActor             = 7
	LimitActorDateRange    = 10
	LimitDirector          = 10
	LimitDirectorDateRange = 10
	LimitDirectorRating    = 10
	LimitGenre             = 20
	LimitGenreRating       = 10
	LimitFreeText          = 10
)

// PredicateBuilder turns a classified intent into a storage predicate
type PredicateBuilder struct{}

// NewPredicateBuilder creates a new predicate builder
func NewPredicateBuilder() *PredicateBuilder {
	return &PredicateBuilder{}
}

// Build constructs the predicate for ir. Slot values become filter values
// verbatim; they are bound as parameters at execution time.
func (b *PredicateBuilder) Build(ir *model.IntentResult) (*model.Predicate, error) {
	if ir == nil {
		return nil, fmt.Errorf("%w: nil intent", ErrUnknownIntent)
	}
	slots := ir.Slots
	if slots == nil {
		slots = &model.IntentSlots{}
	}

	p := &model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies}
	byRating := &model.Sort{Column: model.ColumnRating, Desc: true}

	switch ir.Intent {
	case model.IntentOverviewLookup:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		p.Join = &model.Join{Table: model.TableOverviews, LeftField: model.ColumnID, RightField: model.ColumnMovieID}
		p.Projection = model.ProjectOverviews
		p.Filters = []model.Filter{ilike(model.ColumnName, slots.EntityText)}
		p.Limit = LimitOverview

	case model.IntentTopRatedByYear:
		if slots.Year == nil {
			return nil, fmt.Errorf("%w: year", ErrMissingSlot)
		}
		p.Filters = []model.Filter{{Column: model.ColumnYear, Op: model.OpEq, Values: []any{*slots.Year}}}
		p.Sort = byRating
		p.Limit = LimitTopRatedByYear

	case model.IntentActorLookup:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{hasActor(slots.EntityText)}
		p.Sort = byRating
		p.Limit = LimitActor

	case model.IntentActorLookupWithDateRange:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		years, err := yearsBetween(slots)
		if err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{hasActor(slots.EntityText), years}
		p.Sort = byRating
		p.Limit = LimitActorDateRange

	case model.IntentDirectorLookup:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{ilike(model.ColumnDirector, slots.EntityText)}
		p.Sort = byRating
		p.Limit = LimitDirector

	case model.IntentDirectorLookupWithDateRange:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		years, err := yearsBetween(slots)
		if err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{ilike(model.ColumnDirector, slots.EntityText), years}
		p.Sort = byRating
		p.Limit = LimitDirectorDateRange

	case model.IntentDirectorLookupWithRating:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		rating, err := ratingFilter(slots)
		if err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{ilike(model.ColumnDirector, slots.EntityText), rating}
		p.Sort = byRating
		p.Limit = LimitDirectorRating

	case model.IntentGenreLookup:
		genres, err := genreFilters(slots)
		if err != nil {
			return nil, err
		}
		p.Filters = genres
		p.Sort = byRating
		p.Limit = LimitGenre

	case model.IntentGenreLookupWithRating:
		genres, err := genreFilters(slots)
		if err != nil {
			return nil, err
		}
		rating, err := ratingFilter(slots)
		if err != nil {
			return nil, err
		}
		p.Filters = append(genres, rating)
		p.Sort = byRating
		p.Limit = LimitGenreRating

	case model.IntentFreeTextFallback:
		if err := requireText(slots); err != nil {
			return nil, err
		}
		p.Filters = []model.Filter{ilike(model.ColumnName, slots.EntityText)}
		p.Limit = LimitFreeText

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, ir.Intent)
	}

	return p, nil
}

func requireText(slots *model.IntentSlots) error {
	if slots.EntityText == "" {
		return fmt.Errorf("%w: entity_text", ErrMissingSlot)
	}
	return nil
}

func ilike(column, text string) model.Filter {
	return model.Filter{Column: column, Op: model.OpILike, Values: []any{text}}
}

func hasActor(name string) model.Filter {
	return model.Filter{Column: model.ColumnActors, Op: model.OpAnyILike, Values: []any{name}}
}

func yearsBetween(slots *model.IntentSlots) (model.Filter, error) {
	if slots.YearFrom == nil || slots.YearTo == nil {
		return model.Filter{}, fmt.Errorf("%w: year_from, year_to", ErrMissingSlot)
	}
	return model.Filter{Column: model.ColumnYear, Op: model.OpBetween, Values: []any{*slots.YearFrom, *slots.YearTo}}, nil
}

// ratingFilter maps Above to a strict greater-than and Below to a strict less-than
func ratingFilter(slots *model.IntentSlots) (model.Filter, error) {
	if slots.RatingThreshold == nil {
		return model.Filter{}, fmt.Errorf("%w: rating_threshold", ErrMissingSlot)
	}
	var op model.Operator
	switch slots.RatingDirection {
	case model.RatingAbove:
		op = model.OpGT
	case model.RatingBelow:
		op = model.OpLT
	default:
		return model.Filter{}, fmt.Errorf("%w: rating_direction", ErrMissingSlot)
	}
	return model.Filter{Column: model.ColumnRating, Op: op, Values: []any{*slots.RatingThreshold}}, nil
}

// genreFilters requires every listed genre to be present
func genreFilters(slots *model.IntentSlots) ([]model.Filter, error) {
	if len(slots.Genres) == 0 {
		return nil, fmt.Errorf("%w: genres", ErrMissingSlot)
	}
	filters := make([]model.Filter, 0, len(slots.Genres)+1)
	for _, g := range slots.Genres {
		filters = append(filters, ilike(model.ColumnGenre, g))
	}
	return filters, nil
}
