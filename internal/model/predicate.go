package model

// Operator is a comparison applied by a filter clause
type Operator string

const (
	OpEq       Operator = "eq"        // column = value
	OpILike    Operator = "ilike"     // case-insensitive substring of a text column
	OpAnyILike Operator = "any_ilike" // case-insensitive equality against any array element
	OpBetween  Operator = "between"   // inclusive range, Values holds lower and upper bound
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
)

// Projection selects the shape of returned rows
type Projection string

const (
	ProjectMovies    Projection = "movies"
	ProjectOverviews Projection = "overviews"
)

// Table and column names a predicate may reference
const (
	TableMovies    = "movies"
	TableOverviews = "movie_overviews"

	ColumnID       = "id"
	ColumnName     = "movie_name"
	ColumnRating   = "tmdb_rating"
	ColumnGenre    = "genre"
	ColumnYear     = "release_year"
	ColumnDirector = "director_name"
	ColumnActors   = "top_5_actors"
	ColumnOverview = "overview"
	ColumnMovieID  = "movie_id"
)

// Filter is a single clause of a predicate. Values are literals that are
// always bound as query parameters, never spliced into query text.
// For OpILike the value is the raw substring, not a LIKE pattern.
type Filter struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Values []any    `json:"values"`
}

// Sort orders results by one column
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Join attaches a second table by foreign key
type Join struct {
	Table      string `json:"table"`
	LeftField  string `json:"left_field"`
	RightField string `json:"right_field"`
}

// Predicate is a storage-agnostic query: table, conjunctive filters, ordering and limit
type Predicate struct {
	Table      string     `json:"table"`
	Join       *Join      `json:"join,omitempty"`
	Projection Projection `json:"projection"`
	Filters    []Filter   `json:"filters"`
	Sort       *Sort      `json:"sort,omitempty"`
	Limit      int        `json:"limit"`
}
