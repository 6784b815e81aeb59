package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moviequery/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository handles database operations
type PostgresRepository struct {
	db     *sqlx.DB
	schema string
}

// NewPostgresRepository creates a new PostgreSQL repository and fails when
// the database cannot be reached
func NewPostgresRepository(dsn, schema string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	r, err := OpenPostgresRepository(dsn, schema, maxConn, maxIdleConn)
	if err != nil {
		return nil, err
	}

	if err := r.db.Ping(); err != nil {
		r.db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return r, nil
}

// OpenPostgresRepository creates a repository without contacting the
// database. Connections are made per query, so an unreachable database
// only fails the queries issued while it is down.
func OpenPostgresRepository(dsn, schema string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresRepository{db: db, schema: schema}, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB, schema string) *PostgresRepository {
	return &PostgresRepository{db: db, schema: schema}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Execute runs a predicate on a dedicated connection inside a read-only
// transaction. The connection goes back to the pool on every path.
func (r *PostgresRepository) Execute(ctx context.Context, p *model.Predicate) ([]model.ResultRow, error) {
	query, args, err := CompileSQL(r.schema, p)
	if err != nil {
		return nil, fmt.Errorf("failed to compile predicate: %w", err)
	}

	conn, err := r.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []model.ResultRow
	if p.Projection == model.ProjectOverviews {
		var overviews []model.MovieOverview
		if err := tx.SelectContext(ctx, &overviews, query, args...); err != nil {
			return nil, fmt.Errorf("failed to fetch overviews: %w", err)
		}
		rows = make([]model.ResultRow, 0, len(overviews))
		for _, o := range overviews {
			rows = append(rows, o.Row())
		}
	} else {
		var movies []model.Movie
		if err := tx.SelectContext(ctx, &movies, query, args...); err != nil {
			return nil, fmt.Errorf("failed to fetch movies: %w", err)
		}
		rows = make([]model.ResultRow, 0, len(movies))
		for _, m := range movies {
			rows = append(rows, m.Row())
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rows, nil
}

// InsertMovies stores a batch of catalog movies and their overviews in one
// transaction. With skipExisting, a movie whose name and release year are
// already stored is counted as skipped instead of inserted.
func (r *PostgresRepository) InsertMovies(ctx context.Context, movies []model.CatalogMovie, skipExisting bool) (int, int, error) {
	if len(movies) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existsQuery := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE movie_name = $1 AND release_year IS NOT DISTINCT FROM $2)`,
		qualify(r.schema, model.TableMovies))
	movieQuery := fmt.Sprintf(`
		INSERT INTO %s (movie_name, tmdb_rating, genre, release_year, director_name, top_5_actors)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, qualify(r.schema, model.TableMovies))
	overviewQuery := fmt.Sprintf(
		`INSERT INTO %s (movie_id, movie_name, overview) VALUES ($1, $2, $3)`,
		qualify(r.schema, model.TableOverviews))

	inserted, skipped := 0, 0
	for _, m := range movies {
		if skipExisting {
			var exists bool
			if err := tx.GetContext(ctx, &exists, existsQuery, m.Name, m.ReleaseYear); err != nil {
				return 0, 0, fmt.Errorf("failed to check movie %q: %w", m.Name, err)
			}
			if exists {
				skipped++
				continue
			}
		}

		var id int64
		err := tx.QueryRowxContext(ctx, movieQuery,
			m.Name, m.Rating, nullString(m.Genre), m.ReleaseYear, nullString(m.Director), pq.Array(m.TopActors),
		).Scan(&id)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert movie %q: %w", m.Name, err)
		}

		if _, err := tx.ExecContext(ctx, overviewQuery, id, m.Name, nullString(m.Overview)); err != nil {
			return 0, 0, fmt.Errorf("failed to insert overview for %q: %w", m.Name, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, skipped, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
