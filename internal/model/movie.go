package model

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ResultRow is one row of query output as an ordered sequence of typed fields.
// Movie rows follow MovieColumns, overview rows follow OverviewColumns.
type ResultRow []any

// Field positions of a movie row
const (
	MovieFieldID = iota
	MovieFieldName
	MovieFieldRating
	MovieFieldGenre
	MovieFieldYear
	MovieFieldDirector
	MovieFieldActors
)

// Field positions of an overview row
const (
	OverviewFieldName = iota
	OverviewFieldText
)

// MovieColumns is the select list of the movies projection, in field order
var MovieColumns = []string{ColumnID, ColumnName, ColumnRating, ColumnGenre, ColumnYear, ColumnDirector, ColumnActors}

// OverviewColumns is the select list of the overviews projection, in field order
var OverviewColumns = []string{ColumnName, ColumnOverview}

// Movie represents a stored movie
type Movie struct {
	ID          int64               `json:"id" db:"id"`
	Name        string              `json:"movie_name" db:"movie_name"`
	Rating      decimal.NullDecimal `json:"tmdb_rating" db:"tmdb_rating"`
	Genre       sql.NullString      `json:"genre" db:"genre"`
	ReleaseYear sql.NullInt64       `json:"release_year" db:"release_year"`
	Director    sql.NullString      `json:"director_name" db:"director_name"`
	TopActors   pq.StringArray      `json:"top_5_actors" db:"top_5_actors"`
}

// Row flattens the movie into MovieColumns order. Missing rating and year become nil.
func (m Movie) Row() ResultRow {
	var rating any
	if m.Rating.Valid {
		rating = m.Rating.Decimal
	}
	var year any
	if m.ReleaseYear.Valid {
		year = int(m.ReleaseYear.Int64)
	}
	actors := []string(m.TopActors)
	if actors == nil {
		actors = []string{}
	}
	return ResultRow{m.ID, m.Name, rating, m.Genre.String, year, m.Director.String, actors}
}

// MovieOverview represents a movie name joined with its overview text
type MovieOverview struct {
	Name     string         `json:"movie_name" db:"movie_name"`
	Overview sql.NullString `json:"overview" db:"overview"`
}

// Row flattens the overview into OverviewColumns order
func (o MovieOverview) Row() ResultRow {
	return ResultRow{o.Name, o.Overview.String}
}

// CatalogMovie is a normalized catalog entry ready to be stored
type CatalogMovie struct {
	CatalogID   int64
	Name        string
	Rating      decimal.NullDecimal
	Genre       string
	ReleaseYear sql.NullInt64
	Director    string
	TopActors   []string
	Overview    string
}
