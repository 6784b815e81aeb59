package service

import (
	"fmt"
	"strconv"
	"strings"

	"moviequery/internal/model"

	"github.com/shopspring/decimal"
)

// NoResultsMessage is shown whenever a query produces no rows
const NoResultsMessage = "No results found."

// FormatRows converts exact decimals to float64 for display. Other fields
// pass through unchanged and row and field order is preserved.
func FormatRows(rows []model.ResultRow) []model.ResultRow {
	formatted := make([]model.ResultRow, 0, len(rows))
	for _, row := range rows {
		out := make(model.ResultRow, len(row))
		for i, field := range row {
			switch v := field.(type) {
			case decimal.Decimal:
				out[i] = v.InexactFloat64()
			case *decimal.Decimal:
				if v == nil {
					out[i] = nil
				} else {
					out[i] = v.InexactFloat64()
				}
			default:
				out[i] = field
			}
		}
		formatted = append(formatted, out)
	}
	return formatted
}

// DisplayResults renders movie and overview rows as text, movies first.
// With no rows at all it returns NoResultsMessage.
func DisplayResults(movies, overviews []model.ResultRow) string {
	if len(movies) == 0 && len(overviews) == 0 {
		return NoResultsMessage
	}

	var sb strings.Builder
	if len(movies) > 0 {
		fmt.Fprintf(&sb, "%d Movies Found :-\n\n", len(movies))
		for i, m := range movies {
			fmt.Fprintf(&sb, "%d. %s (%s)\n\n", i+1, field(m, model.MovieFieldName), field(m, model.MovieFieldYear))
			fmt.Fprintf(&sb, "Rating: %s\n", field(m, model.MovieFieldRating))
			fmt.Fprintf(&sb, "Genre: %s\n", field(m, model.MovieFieldGenre))
			fmt.Fprintf(&sb, "Director: %s\n", field(m, model.MovieFieldDirector))
			fmt.Fprintf(&sb, "Top Actors: %s\n\n", field(m, model.MovieFieldActors))
		}
	}
	if len(overviews) > 0 {
		sb.WriteString("Movie Overviews :-\n\n")
		for i, o := range overviews {
			fmt.Fprintf(&sb, "%d. %s: \"%s\"\n\n", i+1, field(o, model.OverviewFieldName), field(o, model.OverviewFieldText))
		}
	}
	return sb.String()
}

// field renders one row field, "N/A" when absent
func field(row model.ResultRow, i int) string {
	if i >= len(row) || row[i] == nil {
		return "N/A"
	}
	switch v := row[i].(type) {
	case string:
		if v == "" {
			return "N/A"
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	case []string:
		if len(v) == 0 {
			return "N/A"
		}
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}
