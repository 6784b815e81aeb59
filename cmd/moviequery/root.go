package main

import (
	"context"
	"fmt"
	"time"

	"moviequery/internal/config"
	"moviequery/internal/logging"
	"moviequery/internal/repository"
	"moviequery/internal/service"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "moviequery",
		Short: "Ask natural language questions about a movie database",
		Long: `moviequery answers questions such as "top 5 movies from year 2010" or
"movies of director christopher nolan with rating above 8" against a
PostgreSQL movie database, and can populate that database from TMDB.

Run without a subcommand to start the interactive prompt.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPLCommand(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newREPLCmd(opts),
		newAskCmd(opts),
		newServeCmd(opts),
		newIngestCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// app holds the collaborators shared by the subcommands
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func loadApp(opts *rootOptions, component string) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return &app{
		cfg:    cfg,
		logger: logging.New(cfg.Logging, component),
	}, nil
}

func (a *app) openRepository() (*repository.PostgresRepository, error) {
	repo, err := repository.NewPostgresRepository(
		a.cfg.GetPostgreSQLDSN(),
		a.cfg.PostgreSQL.Schema,
		a.cfg.PostgreSQL.MaxConnections,
		a.cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	a.logger.Info().
		Str("host", a.cfg.PostgreSQL.Host).
		Str("database", a.cfg.PostgreSQL.Database).
		Str("schema", a.cfg.PostgreSQL.Schema).
		Msg("Connected to PostgreSQL database")
	return repo, nil
}

// openQueryRepository opens the repository for the query commands. An
// unreachable database is logged and each query then reports no results.
func (a *app) openQueryRepository(ctx context.Context) (*repository.PostgresRepository, error) {
	repo, err := repository.OpenPostgresRepository(
		a.cfg.GetPostgreSQLDSN(),
		a.cfg.PostgreSQL.Schema,
		a.cfg.PostgreSQL.MaxConnections,
		a.cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	logger := a.logger.With().
		Str("host", a.cfg.PostgreSQL.Host).
		Str("database", a.cfg.PostgreSQL.Database).
		Logger()
	if err := repo.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("PostgreSQL is unreachable, queries will return no results until it is back")
	} else {
		logger.Info().Msg("Connected to PostgreSQL database")
	}
	return repo, nil
}

// newQueryService wires the classify, build, execute and format pipeline
func (a *app) newQueryService(exec service.Executor) *service.QueryService {
	openaiClient := service.NewOpenAIClient(&a.cfg.OpenAI)
	if openaiClient.IsEnabled() {
		a.logger.Info().
			Str("api_base", a.cfg.OpenAI.APIBase).
			Str("model", a.cfg.OpenAI.Model).
			Str("api_style", a.cfg.OpenAI.APIStyle).
			Msg("OpenAI client initialized")
	} else {
		a.logger.Warn().Msg("OpenAI is disabled, entity correction and keyword fallback will not work. Set OPENAI_API_KEY to enable")
	}

	corrector := service.NewEntityCorrector(openaiClient, a.cfg.OpenAI.CorrectionDeadline(), a.logger)
	return service.NewQueryService(
		service.NewIntentClassifier(corrector),
		service.NewPredicateBuilder(),
		exec,
		a.logger,
	)
}
