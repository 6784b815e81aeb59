package repository

import (
	"errors"
	"fmt"
	"strings"

	"moviequery/internal/model"
	"moviequery/internal/utils"

	"github.com/lib/pq"
)

var (
	ErrUnknownTable        = errors.New("unknown table")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidFilter       = errors.New("invalid filter")
)

// movieColumns is the whitelist of columns a filter or sort may reference
var movieColumns = map[string]bool{
	model.ColumnID:       true,
	model.ColumnName:     true,
	model.ColumnRating:   true,
	model.ColumnGenre:    true,
	model.ColumnYear:     true,
	model.ColumnDirector: true,
	model.ColumnActors:   true,
}

// textColumns are the columns that accept a substring match
var textColumns = map[string]bool{
	model.ColumnName:     true,
	model.ColumnGenre:    true,
	model.ColumnDirector: true,
}

// validatePredicate checks every identifier in p against the whitelist
func validatePredicate(p *model.Predicate) error {
	if p == nil {
		return fmt.Errorf("%w: nil predicate", ErrInvalidFilter)
	}
	if p.Table != model.TableMovies {
		return fmt.Errorf("%w: %q", ErrUnknownTable, p.Table)
	}
	if p.Join != nil {
		if p.Join.Table != model.TableOverviews {
			return fmt.Errorf("%w: %q", ErrUnknownTable, p.Join.Table)
		}
		if p.Join.LeftField != model.ColumnID || p.Join.RightField != model.ColumnMovieID {
			return fmt.Errorf("%w: join on %s = %s", ErrUnknownColumn, p.Join.LeftField, p.Join.RightField)
		}
	}
	switch p.Projection {
	case model.ProjectMovies:
	case model.ProjectOverviews:
		if p.Join == nil {
			return fmt.Errorf("%w: overview projection requires a join", ErrInvalidFilter)
		}
	default:
		return fmt.Errorf("%w: projection %q", ErrInvalidFilter, p.Projection)
	}

	for _, f := range p.Filters {
		if !movieColumns[f.Column] {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, f.Column)
		}
		switch f.Op {
		case model.OpEq, model.OpGT, model.OpLT:
			if len(f.Values) != 1 {
				return fmt.Errorf("%w: %s on %s needs one value", ErrInvalidFilter, f.Op, f.Column)
			}
		case model.OpILike:
			if !textColumns[f.Column] {
				return fmt.Errorf("%w: %s on non-text column %s", ErrInvalidFilter, f.Op, f.Column)
			}
			if len(f.Values) != 1 {
				return fmt.Errorf("%w: %s on %s needs one value", ErrInvalidFilter, f.Op, f.Column)
			}
			if _, ok := f.Values[0].(string); !ok {
				return fmt.Errorf("%w: %s on %s needs a string", ErrInvalidFilter, f.Op, f.Column)
			}
		case model.OpAnyILike:
			if f.Column != model.ColumnActors {
				return fmt.Errorf("%w: %s on non-array column %s", ErrInvalidFilter, f.Op, f.Column)
			}
			if len(f.Values) != 1 {
				return fmt.Errorf("%w: %s on %s needs one value", ErrInvalidFilter, f.Op, f.Column)
			}
			if _, ok := f.Values[0].(string); !ok {
				return fmt.Errorf("%w: %s on %s needs a string", ErrInvalidFilter, f.Op, f.Column)
			}
		case model.OpBetween:
			if len(f.Values) != 2 {
				return fmt.Errorf("%w: %s on %s needs two values", ErrInvalidFilter, f.Op, f.Column)
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Op)
		}
	}

	if p.Sort != nil && !movieColumns[p.Sort.Column] {
		return fmt.Errorf("%w: sort by %q", ErrUnknownColumn, p.Sort.Column)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidFilter, p.Limit)
	}
	return nil
}

// qualify returns the schema-qualified, quoted table name
func qualify(schema, table string) string {
	if schema == "" {
		return pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// CompileSQL turns a predicate into a PostgreSQL query. Identifiers come only
// from the whitelist; every literal is returned in args behind a $N placeholder.
func CompileSQL(schema string, p *model.Predicate) (string, []interface{}, error) {
	if err := validatePredicate(p); err != nil {
		return "", nil, err
	}

	var selectList []string
	if p.Projection == model.ProjectOverviews {
		selectList = []string{"m." + model.ColumnName, "o." + model.ColumnOverview}
	} else {
		for _, col := range model.MovieColumns {
			selectList = append(selectList, "m."+col)
		}
	}

	from := qualify(schema, model.TableMovies) + " m"
	if p.Join != nil {
		from += fmt.Sprintf(" JOIN %s o ON m.%s = o.%s",
			qualify(schema, p.Join.Table), p.Join.LeftField, p.Join.RightField)
	}

	whereClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	for _, f := range p.Filters {
		col := "m." + f.Column
		switch f.Op {
		case model.OpEq:
			whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", col, argIndex))
			args = append(args, f.Values[0])
			argIndex++
		case model.OpILike:
			whereClauses = append(whereClauses, fmt.Sprintf("%s ILIKE $%d", col, argIndex))
			args = append(args, utils.ContainsPattern(f.Values[0].(string)))
			argIndex++
		case model.OpAnyILike:
			whereClauses = append(whereClauses, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) a WHERE lower(a) = lower($%d))", col, argIndex))
			args = append(args, f.Values[0])
			argIndex++
		case model.OpBetween:
			whereClauses = append(whereClauses, fmt.Sprintf("%s BETWEEN $%d AND $%d", col, argIndex, argIndex+1))
			args = append(args, f.Values[0], f.Values[1])
			argIndex += 2
		case model.OpGT:
			whereClauses = append(whereClauses, fmt.Sprintf("%s > $%d", col, argIndex))
			args = append(args, f.Values[0])
			argIndex++
		case model.OpLT:
			whereClauses = append(whereClauses, fmt.Sprintf("%s < $%d", col, argIndex))
			args = append(args, f.Values[0])
			argIndex++
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectList, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(from)
	if len(whereClauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(whereClauses, " AND "))
	}
	if p.Sort != nil {
		if p.Sort.Desc {
			fmt.Fprintf(&sb, " ORDER BY m.%s DESC NULLS LAST", p.Sort.Column)
		} else {
			fmt.Fprintf(&sb, " ORDER BY m.%s ASC NULLS LAST", p.Sort.Column)
		}
	}
	if p.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", argIndex)
		args = append(args, p.Limit)
	}

	return sb.String(), args, nil
}
