package repository

import (
	"errors"
	"strings"
	"testing"

	"moviequery/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byRating() *model.Sort {
	return &model.Sort{Column: model.ColumnRating, Desc: true}
}

func TestCompileSQL(t *testing.T) {
	tests := []struct {
		name      string
		predicate *model.Predicate
		wantSQL   string
		wantArgs  []interface{}
	}{
		{
			name: "top rated by year",
			predicate: &model.Predicate{
				Table:      model.TableMovies,
				Projection: model.ProjectMovies,
				Filters:    []model.Filter{{Column: model.ColumnYear, Op: model.OpEq, Values: []any{2020}}},
				Sort:       byRating(),
				Limit:      5,
			},
			wantSQL: `SELECT m.id, m.movie_name, m.tmdb_rating, m.genre, m.release_year, m.director_name, m.top_5_actors` +
				` FROM "movies"."movies" m WHERE m.release_year = $1 ORDER BY m.tmdb_rating DESC NULLS LAST LIMIT $2`,
			wantArgs: []interface{}{2020, 5},
		},
		{
			name: "overview join",
			predicate: &model.Predicate{
				Table:      model.TableMovies,
				Join:       &model.Join{Table: model.TableOverviews, LeftField: model.ColumnID, RightField: model.ColumnMovieID},
				Projection: model.ProjectOverviews,
				Filters:    []model.Filter{{Column: model.ColumnName, Op: model.OpILike, Values: []any{"Inception"}}},
				Limit:      7,
			},
			wantSQL: `SELECT m.movie_name, o.overview FROM "movies"."movies" m` +
				` JOIN "movies"."movie_overviews" o ON m.id = o.movie_id WHERE m.movie_name ILIKE $1 LIMIT $2`,
			wantArgs: []interface{}{"%Inception%", 7},
		},
		{
			name: "actor with date range",
			predicate: &model.Predicate{
				Table:      model.TableMovies,
				Projection: model.ProjectMovies,
				Filters: []model.Filter{
					{Column: model.ColumnActors, Op: model.OpAnyILike, Values: []any{"Tom Hanks"}},
					{Column: model.ColumnYear, Op: model.OpBetween, Values: []any{1995, 2005}},
				},
				Sort:  byRating(),
				Limit: 10,
			},
			wantSQL: `SELECT m.id, m.movie_name, m.tmdb_rating, m.genre, m.release_year, m.director_name, m.top_5_actors` +
				` FROM "movies"."movies" m WHERE EXISTS (SELECT 1 FROM unnest(m.top_5_actors) a WHERE lower(a) = lower($1)) AND m.release_year BETWEEN $2 AND $3` +
				` ORDER BY m.tmdb_rating DESC NULLS LAST LIMIT $4`,
			wantArgs: []interface{}{"Tom Hanks", 1995, 2005, 10},
		},
		{
			name: "genres with rating below",
			predicate: &model.Predicate{
				Table:      model.TableMovies,
				Projection: model.ProjectMovies,
				Filters: []model.Filter{
					{Column: model.ColumnGenre, Op: model.OpILike, Values: []any{"War"}},
					{Column: model.ColumnGenre, Op: model.OpILike, Values: []any{"Drama"}},
					{Column: model.ColumnRating, Op: model.OpLT, Values: []any{decimal.RequireFromString("6.5")}},
				},
				Sort:  byRating(),
				Limit: 10,
			},
			wantSQL: `SELECT m.id, m.movie_name, m.tmdb_rating, m.genre, m.release_year, m.director_name, m.top_5_actors` +
				` FROM "movies"."movies" m WHERE m.genre ILIKE $1 AND m.genre ILIKE $2 AND m.tmdb_rating < $3` +
				` ORDER BY m.tmdb_rating DESC NULLS LAST LIMIT $4`,
			wantArgs: []interface{}{"%War%", "%Drama%", decimal.RequireFromString("6.5"), 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := CompileSQL("movies", tt.predicate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompileSQL_LiteralsNeverReachQueryText(t *testing.T) {
	hostile := "x'; DROP TABLE movies; --"
	p := &model.Predicate{
		Table:      model.TableMovies,
		Projection: model.ProjectMovies,
		Filters: []model.Filter{
			{Column: model.ColumnDirector, Op: model.OpILike, Values: []any{hostile}},
			{Column: model.ColumnActors, Op: model.OpAnyILike, Values: []any{hostile}},
		},
		Limit: 10,
	}

	query, args, err := CompileSQL("movies", p)
	require.NoError(t, err)
	assert.NotContains(t, query, "DROP")
	assert.NotContains(t, query, "'")
	assert.Equal(t, []interface{}{"%" + hostile + "%", hostile, 10}, args)
}

func TestCompileSQL_EscapesLikeMetacharacters(t *testing.T) {
	p := &model.Predicate{
		Table:      model.TableMovies,
		Projection: model.ProjectMovies,
		Filters:    []model.Filter{{Column: model.ColumnName, Op: model.OpILike, Values: []any{"100%_pure"}}},
	}

	_, args, err := CompileSQL("", p)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{`%100\%\_pure%`}, args)
}

func TestCompileSQL_UnqualifiedSchema(t *testing.T) {
	p := &model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies}

	query, args, err := CompileSQL("", p)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(query, `FROM "movies" m`), query)
	assert.Empty(t, args)
}

func TestCompileSQL_Rejects(t *testing.T) {
	join := &model.Join{Table: model.TableOverviews, LeftField: model.ColumnID, RightField: model.ColumnMovieID}
	tests := []struct {
		name      string
		predicate *model.Predicate
		wantErr   error
	}{
		{"nil predicate", nil, ErrInvalidFilter},
		{"unknown table", &model.Predicate{Table: "users", Projection: model.ProjectMovies}, ErrUnknownTable},
		{
			"unknown join table",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectOverviews, Join: &model.Join{Table: "users", LeftField: model.ColumnID, RightField: model.ColumnMovieID}},
			ErrUnknownTable,
		},
		{"overviews without join", &model.Predicate{Table: model.TableMovies, Projection: model.ProjectOverviews}, ErrInvalidFilter},
		{
			"unknown column",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Filters: []model.Filter{{Column: "1=1; --", Op: model.OpEq, Values: []any{1}}}},
			ErrUnknownColumn,
		},
		{
			"unknown sort column",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Sort: &model.Sort{Column: "random()"}},
			ErrUnknownColumn,
		},
		{
			"unsupported operator",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Filters: []model.Filter{{Column: model.ColumnYear, Op: "regex", Values: []any{1}}}},
			ErrUnsupportedOperator,
		},
		{
			"between with one value",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Filters: []model.Filter{{Column: model.ColumnYear, Op: model.OpBetween, Values: []any{1}}}},
			ErrInvalidFilter,
		},
		{
			"ilike on number column",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Filters: []model.Filter{{Column: model.ColumnYear, Op: model.OpILike, Values: []any{"2"}}}},
			ErrInvalidFilter,
		},
		{
			"any ilike on scalar column",
			&model.Predicate{Table: model.TableMovies, Projection: model.ProjectOverviews, Join: join, Filters: []model.Filter{{Column: model.ColumnName, Op: model.OpAnyILike, Values: []any{"x"}}}},
			ErrInvalidFilter,
		},
		{"negative limit", &model.Predicate{Table: model.TableMovies, Projection: model.ProjectMovies, Limit: -1}, ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CompileSQL("movies", tt.predicate)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("movies")
	require.Len(t, stmts, 5)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "movies"`, stmts[0])
	assert.Contains(t, stmts[1], "NUMERIC(3,2)")
	assert.Contains(t, stmts[1], "TEXT[]")
	assert.Contains(t, stmts[2], `REFERENCES "movies"."movies" (id)`)

	assert.Len(t, schemaStatements(""), 4)
}
