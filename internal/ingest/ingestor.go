// Package ingest pages through the movie catalog and stores normalized rows.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"moviequery/internal/catalog"
	"moviequery/internal/config"
	"moviequery/internal/model"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// maxRating is the largest value the numeric(3,2) rating column holds
var maxRating = decimal.RequireFromString("9.99")

// Catalog is the subset of the catalog client the ingestor needs
type Catalog interface {
	Discover(ctx context.Context, page int, dr *config.DateRange) (*catalog.DiscoverPage, error)
	TotalPages(ctx context.Context, dr *config.DateRange) (int, error)
	Genres(ctx context.Context) (map[int]string, error)
	Credits(ctx context.Context, movieID int64) (*catalog.Credits, error)
}

// Store persists normalized movies
type Store interface {
	InsertMovies(ctx context.Context, movies []model.CatalogMovie, skipExisting bool) (inserted, skipped int, err error)
}

// Stats summarizes one ingestion run
type Stats struct {
	Pages         int `json:"pages"`
	SkippedPages  int `json:"skipped_pages"`
	Fetched       int `json:"fetched"`
	Inserted      int `json:"inserted"`
	Skipped       int `json:"skipped"`
	FailedBatches int `json:"failed_batches"`
}

// Ingestor runs the sequential batch pipeline
type Ingestor struct {
	catalog  Catalog
	store    Store
	cfg      config.IngestionConfig
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	progress io.Writer
}

// Option configures an Ingestor
type Option func(*Ingestor)

// WithSleep replaces the pause between batches
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(i *Ingestor) { i.sleep = sleep }
}

// WithProgress renders a progress bar per batch to w
func WithProgress(w io.Writer) Option {
	return func(i *Ingestor) { i.progress = w }
}

// NewIngestor creates a new ingestor
func NewIngestor(c Catalog, store Store, cfg config.IngestionConfig, logger zerolog.Logger, opts ...Option) *Ingestor {
	i := &Ingestor{
		catalog:  c,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		sleep:    catalog.Sleep,
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ingests every configured date range, or the whole catalog when none is
// configured. Page and batch failures are logged and skipped; only context
// cancellation stops the run early.
func (i *Ingestor) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	ranges := make([]*config.DateRange, 0, len(i.cfg.DateRanges))
	for idx := range i.cfg.DateRanges {
		ranges = append(ranges, &i.cfg.DateRanges[idx])
	}
	if len(ranges) == 0 {
		ranges = append(ranges, nil)
	}

	for idx, dr := range ranges {
		last := idx == len(ranges)-1
		if err := i.runRange(ctx, dr, last, stats); err != nil {
			return stats, err
		}
	}

	i.logger.Info().
		Int("pages", stats.Pages).
		Int("skipped_pages", stats.SkippedPages).
		Int("fetched", stats.Fetched).
		Int("inserted", stats.Inserted).
		Int("skipped", stats.Skipped).
		Int("failed_batches", stats.FailedBatches).
		Msg("Ingestion completed")
	return stats, nil
}

func (i *Ingestor) runRange(ctx context.Context, dr *config.DateRange, lastRange bool, stats *Stats) error {
	logger := i.logger.With().Logger()
	if dr != nil {
		logger = logger.With().Str("from", dr.From).Str("to", dr.To).Logger()
	}

	total := i.cfg.TotalPages
	if total <= 0 {
		probed, err := i.catalog.TotalPages(ctx, dr)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("Failed to probe total pages, skipping range")
			return nil
		}
		total = probed
	}
	if total > catalog.MaxDiscoverPage {
		total = catalog.MaxDiscoverPage
	}

	start := i.cfg.StartPage
	if start < 1 {
		start = 1
	}
	batchSize := i.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	logger.Info().Int("start_page", start).Int("total_pages", total).Msg("Fetching movies")

	for batchStart := start; batchStart <= total; batchStart += batchSize {
		batchEnd := batchStart + batchSize - 1
		if batchEnd > total {
			batchEnd = total
		}

		movies, err := i.fetchBatch(ctx, dr, batchStart, batchEnd, stats, logger)
		if err != nil {
			return err
		}

		inserted, skipped, err := i.store.InsertMovies(ctx, movies, i.cfg.SkipExisting)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.FailedBatches++
			logger.Error().Err(err).Int("first_page", batchStart).Int("last_page", batchEnd).Msg("Failed to store batch")
		} else {
			stats.Inserted += inserted
			stats.Skipped += skipped
			logger.Info().
				Int("first_page", batchStart).
				Int("last_page", batchEnd).
				Int("inserted", inserted).
				Int("skipped", skipped).
				Msg("Processed pages")
		}

		if lastRange && batchEnd >= total {
			break
		}
		if i.cfg.PauseSeconds > 0 {
			if err := i.sleep(ctx, time.Duration(i.cfg.PauseSeconds)*time.Second); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchBatch downloads and normalizes the pages of one batch
func (i *Ingestor) fetchBatch(ctx context.Context, dr *config.DateRange, first, last int, stats *Stats, logger zerolog.Logger) ([]model.CatalogMovie, error) {
	bar := progressbar.NewOptions(last-first+1,
		progressbar.OptionSetWriter(i.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("Pages %d-%d", first, last)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
	)
	defer bar.Finish()

	var movies []model.CatalogMovie
	for page := first; page <= last; page++ {
		result, err := i.catalog.Discover(ctx, page, dr)
		bar.Add(1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			stats.SkippedPages++
			logger.Warn().Err(err).Int("page", page).Msg("Skipping page")
			continue
		}
		stats.Pages++

		for _, m := range result.Results {
			cm, err := i.resolve(ctx, m, logger)
			if err != nil {
				return nil, err
			}
			movies = append(movies, cm)
		}
		stats.Fetched += len(result.Results)
	}
	return movies, nil
}

// resolve fetches the genre names and credits of m and normalizes it.
// Lookup failures fall back to empty genres and DefaultDirector.
func (i *Ingestor) resolve(ctx context.Context, m catalog.DiscoverMovie, logger zerolog.Logger) (model.CatalogMovie, error) {
	genres, err := i.catalog.Genres(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return model.CatalogMovie{}, ctx.Err()
		}
		logger.Warn().Err(err).Int64("movie_id", m.ID).Msg("Genre lookup failed")
	}

	credits, err := i.catalog.Credits(ctx, m.ID)
	if err != nil {
		if ctx.Err() != nil {
			return model.CatalogMovie{}, ctx.Err()
		}
		logger.Warn().Err(err).Int64("movie_id", m.ID).Msg("Credits lookup failed")
		credits = &catalog.Credits{Director: catalog.DefaultDirector, Cast: []string{}}
	}

	return Normalize(m, genres, credits), nil
}

// Normalize converts a catalog entry into a storable movie: the rating is
// capped at 9.99, the year is taken from the release date and genre ids are
// resolved to a comma separated list.
func Normalize(m catalog.DiscoverMovie, genres map[int]string, credits *catalog.Credits) model.CatalogMovie {
	rating := decimal.NewFromFloat(m.VoteAverage).Round(2)
	if rating.GreaterThan(maxRating) {
		rating = maxRating
	}

	var year sql.NullInt64
	if y, _, _ := strings.Cut(m.ReleaseDate, "-"); y != "" {
		if n, err := strconv.ParseInt(y, 10, 64); err == nil {
			year = sql.NullInt64{Int64: n, Valid: true}
		}
	}

	names := make([]string, 0, len(m.GenreIDs))
	for _, id := range m.GenreIDs {
		if name, ok := genres[id]; ok {
			names = append(names, name)
		}
	}

	cm := model.CatalogMovie{
		CatalogID:   m.ID,
		Name:        m.Title,
		Rating:      decimal.NewNullDecimal(rating),
		Genre:       strings.Join(names, ", "),
		ReleaseYear: year,
		Director:    catalog.DefaultDirector,
		TopActors:   []string{},
		Overview:    m.Overview,
	}
	if credits != nil {
		if credits.Director != "" {
			cm.Director = credits.Director
		}
		if credits.Cast != nil {
			cm.TopActors = credits.Cast
		}
	}
	return cm
}
