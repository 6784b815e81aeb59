package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"moviequery/internal/model"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Answer a single query and exit",
		Example: `  moviequery ask top 5 movies from year 2010
  moviequery ask --json "overview of inception movie"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, "moviequery-ask")
			if err != nil {
				return err
			}

			repo, err := a.openQueryRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			resp := a.newQueryService(repo).Run(cmd.Context(), strings.Join(args, " "))
			return writeResponse(cmd.OutOrStdout(), resp, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func writeResponse(w io.Writer, resp *model.QueryResponse, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprint(w, resp.Display)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
