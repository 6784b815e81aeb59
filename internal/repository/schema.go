package repository

import (
	"context"
	"fmt"

	"moviequery/internal/model"

	"github.com/lib/pq"
)

// schemaStatements returns the DDL for the movie store, in execution order
func schemaStatements(schema string) []string {
	var stmts []string
	if schema != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(schema)))
	}
	movies := qualify(schema, model.TableMovies)
	overviews := qualify(schema, model.TableOverviews)
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            SERIAL PRIMARY KEY,
			movie_name    TEXT NOT NULL,
			tmdb_rating   NUMERIC(3,2) CHECK (tmdb_rating >= 0 AND tmdb_rating <= 10),
			genre         TEXT,
			release_year  INTEGER,
			director_name TEXT,
			top_5_actors  TEXT[]
		)`, movies),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			movie_id   INTEGER NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			movie_name TEXT NOT NULL,
			overview   TEXT
		)`, overviews, movies),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS movies_release_year_idx ON %s (release_year)`, movies),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS movie_overviews_movie_id_idx ON %s (movie_id)`, overviews),
	)
	return stmts
}

// EnsureSchema creates the schema, tables and indexes if they are missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(r.schema) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
