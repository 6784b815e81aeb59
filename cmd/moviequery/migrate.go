package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the movie schema and tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, "moviequery-migrate")
			if err != nil {
				return err
			}

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info().Str("schema", a.cfg.PostgreSQL.Schema).Msg("Schema is up to date")
			return nil
		},
	}
}
