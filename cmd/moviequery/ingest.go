package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"moviequery/internal/catalog"
	"moviequery/internal/config"
	"moviequery/internal/ingest"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ingestOptions struct {
	startPage    int
	totalPages   int
	batchSize    int
	pauseSeconds int
	skipExisting bool
	from         string
	to           string
}

// apply overrides cfg with the flags that were set on cmd
func (o *ingestOptions) apply(cmd *cobra.Command, cfg *config.IngestionConfig) {
	flags := cmd.Flags()
	if flags.Changed("start-page") {
		cfg.StartPage = o.startPage
	}
	if flags.Changed("total-pages") {
		cfg.TotalPages = o.totalPages
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if flags.Changed("pause") {
		cfg.PauseSeconds = o.pauseSeconds
	}
	if flags.Changed("skip-existing") {
		cfg.SkipExisting = o.skipExisting
	}
	if o.from != "" || o.to != "" {
		cfg.DateRanges = []config.DateRange{{From: o.from, To: o.to}}
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	o := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Populate the database from the TMDB catalog",
		Long: `Fetch movies from the TMDB discover endpoint page by page, resolve their
genres, director and top five cast, and store them in batches.

Date ranges may be configured under ingestion.date_ranges or given with
--from/--to; each range is paged from the start page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, "moviequery-ingest")
			if err != nil {
				return err
			}
			if a.cfg.Catalog.APIKey == "" {
				return errors.New("TMDB_API_KEY is not set")
			}

			cfg := a.cfg.Ingestion
			o.apply(cmd, &cfg)
			a.cfg.Ingestion = cfg
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := repo.EnsureSchema(ctx); err != nil {
				return err
			}

			client := catalog.NewClient(&a.cfg.Catalog, a.logger)
			ingestor := ingest.NewIngestor(client, repo, cfg, a.logger, ingest.WithProgress(os.Stderr))
			stats, err := ingestor.Run(ctx)
			if err != nil {
				return fmt.Errorf("ingestion stopped: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(),
				"Ingested %d movies from %d pages (%d skipped as existing, %d pages failed, %d batches failed)\n",
				stats.Inserted, stats.Pages, stats.Skipped, stats.SkippedPages, stats.FailedBatches)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&o.startPage, "start-page", 1, "first page to fetch")
	flags.IntVar(&o.totalPages, "total-pages", 0, "last page to fetch, 0 asks the catalog")
	flags.IntVar(&o.batchSize, "batch-size", 100, "pages stored per transaction")
	flags.IntVar(&o.pauseSeconds, "pause", 60, "seconds to pause between batches")
	flags.BoolVar(&o.skipExisting, "skip-existing", false, "skip movies already stored with the same name and year")
	cmd.PersistentFlags().StringVar(&o.from, "from", "", "earliest primary release date (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&o.to, "to", "", "latest primary release date (YYYY-MM-DD)")

	cmd.AddCommand(newIngestPagesCmd(opts, o))
	return cmd
}

func newIngestPagesCmd(opts *rootOptions, o *ingestOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "Print how many discover pages the catalog serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, "moviequery-ingest")
			if err != nil {
				return err
			}
			if a.cfg.Catalog.APIKey == "" {
				return errors.New("TMDB_API_KEY is not set")
			}

			var dr *config.DateRange
			if o.from != "" || o.to != "" {
				dr = &config.DateRange{From: o.from, To: o.to}
			}

			client := catalog.NewClient(&a.cfg.Catalog, a.logger)
			total, err := client.TotalPages(cmd.Context(), dr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total pages: %d\n", total)
			return nil
		},
	}
}
