package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"moviequery/internal/model"
	"moviequery/internal/utils"

	"github.com/shopspring/decimal"
)

// MemoryRepository evaluates predicates against movies held in process.
// It follows the same matching rules as the compiled SQL.
type MemoryRepository struct {
	mu        sync.RWMutex
	movies    []model.Movie
	overviews map[int64]string
	nextID    int64
}

// NewMemoryRepository creates a repository seeded with movies
func NewMemoryRepository(movies ...model.Movie) *MemoryRepository {
	r := &MemoryRepository{overviews: make(map[int64]string), nextID: 1}
	for _, m := range movies {
		r.Add(m, "")
	}
	return r
}

// Add stores a movie and an optional overview. A zero ID is assigned.
func (r *MemoryRepository) Add(m model.Movie, overview string) model.Movie {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == 0 {
		m.ID = r.nextID
	}
	if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	r.movies = append(r.movies, m)
	if overview != "" {
		r.overviews[m.ID] = overview
	}
	return m
}

// Len returns the number of stored movies
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.movies)
}

// Execute evaluates a predicate over the stored movies
func (r *MemoryRepository) Execute(ctx context.Context, p *model.Predicate) ([]model.ResultRow, error) {
	if err := validatePredicate(p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []model.Movie
	for _, m := range r.movies {
		if p.Join != nil {
			if _, ok := r.overviews[m.ID]; !ok {
				continue
			}
		}
		if matchesAll(m, p.Filters) {
			matched = append(matched, m)
		}
	}

	if p.Sort != nil {
		col, desc := p.Sort.Column, p.Sort.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			return less(columnValue(matched[i], col), columnValue(matched[j], col), desc)
		})
	}
	if p.Limit > 0 && len(matched) > p.Limit {
		matched = matched[:p.Limit]
	}

	rows := make([]model.ResultRow, 0, len(matched))
	for _, m := range matched {
		if p.Projection == model.ProjectOverviews {
			rows = append(rows, model.MovieOverview{
				Name:     m.Name,
				Overview: sql.NullString{String: r.overviews[m.ID], Valid: true},
			}.Row())
			continue
		}
		rows = append(rows, m.Row())
	}
	return rows, nil
}

// InsertMovies stores catalog movies, skipping name and year duplicates when asked
func (r *MemoryRepository) InsertMovies(ctx context.Context, movies []model.CatalogMovie, skipExisting bool) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	inserted, skipped := 0, 0
	for _, cm := range movies {
		if skipExisting && r.exists(cm.Name, cm.ReleaseYear) {
			skipped++
			continue
		}
		r.Add(model.Movie{
			Name:        cm.Name,
			Rating:      cm.Rating,
			Genre:       nullString(cm.Genre),
			ReleaseYear: cm.ReleaseYear,
			Director:    nullString(cm.Director),
			TopActors:   append([]string(nil), cm.TopActors...),
		}, cm.Overview)
		inserted++
	}
	return inserted, skipped, nil
}

func (r *MemoryRepository) exists(name string, year sql.NullInt64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.movies {
		if m.Name == name && m.ReleaseYear == year {
			return true
		}
	}
	return false
}

func matchesAll(m model.Movie, filters []model.Filter) bool {
	for _, f := range filters {
		if !matches(m, f) {
			return false
		}
	}
	return true
}

func matches(m model.Movie, f model.Filter) bool {
	switch f.Op {
	case model.OpILike:
		s, ok := columnValue(m, f.Column).(string)
		return ok && utils.ContainsFold(s, f.Values[0].(string))
	case model.OpAnyILike:
		want := f.Values[0].(string)
		for _, actor := range m.TopActors {
			if strings.EqualFold(actor, want) {
				return true
			}
		}
		return false
	}

	got, ok := toDecimal(columnValue(m, f.Column))
	if !ok {
		return f.Op == model.OpEq && columnValue(m, f.Column) == f.Values[0]
	}
	first, ok := toDecimal(f.Values[0])
	if !ok {
		return false
	}
	switch f.Op {
	case model.OpEq:
		return got.Equal(first)
	case model.OpGT:
		return got.GreaterThan(first)
	case model.OpLT:
		return got.LessThan(first)
	case model.OpBetween:
		second, ok := toDecimal(f.Values[1])
		return ok && got.GreaterThanOrEqual(first) && got.LessThanOrEqual(second)
	}
	return false
}

// columnValue returns a column of m, or nil when the column is NULL
func columnValue(m model.Movie, column string) any {
	switch column {
	case model.ColumnID:
		return m.ID
	case model.ColumnName:
		return m.Name
	case model.ColumnRating:
		if m.Rating.Valid {
			return m.Rating.Decimal
		}
	case model.ColumnGenre:
		if m.Genre.Valid {
			return m.Genre.String
		}
	case model.ColumnYear:
		if m.ReleaseYear.Valid {
			return m.ReleaseYear.Int64
		}
	case model.ColumnDirector:
		if m.Director.Valid {
			return m.Director.String
		}
	}
	return nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Decimal{}, false
}

// less orders two column values with NULLs last in either direction
func less(a, b any, desc bool) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			if desc {
				return da.GreaterThan(db)
			}
			return da.LessThan(db)
		}
	}
	sa, _ := a.(string)
	sb, _ := b.(string)
	if desc {
		return sa > sb
	}
	return sa < sb
}
