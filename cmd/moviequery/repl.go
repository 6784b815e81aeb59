package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"moviequery/internal/model"
	"moviequery/internal/service"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	exitPhrase  = "thanks, i am done here"
	promptText  = "Enter your query (or 'thanks, I am done here' to exit): "
	farewellMsg = "Thank you! Have a great day!"
)

// querier answers one natural language query
type querier interface {
	Run(ctx context.Context, raw string) *model.QueryResponse
}

func newREPLCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive query prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPLCommand(cmd, opts)
		},
	}
}

func runREPLCommand(cmd *cobra.Command, opts *rootOptions) error {
	a, err := loadApp(opts, "moviequery-repl")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := a.openQueryRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	session := &replSession{
		in:      cmd.InOrStdin(),
		out:     cmd.OutOrStdout(),
		query:   a.newQueryService(repo),
		spinner: true,
	}
	return session.run(ctx)
}

// replSession reads one query per line until the exit phrase, EOF or cancellation
type replSession struct {
	in      io.Reader
	out     io.Writer
	query   querier
	spinner bool
}

func (s *replSession) run(ctx context.Context) error {
	prompt := color.New(color.FgCyan, color.Bold)
	farewell := color.New(color.FgGreen)
	empty := color.New(color.FgYellow)

	scanner := bufio.NewScanner(s.in)
	for {
		prompt.Fprint(s.out, promptText)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read query: %w", err)
			}
			fmt.Fprintln(s.out)
			farewell.Fprintln(s.out, farewellMsg)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if isExitPhrase(line) {
			farewell.Fprintln(s.out, farewellMsg)
			return nil
		}

		resp := s.ask(ctx, line)
		if resp.Empty() {
			empty.Fprintln(s.out, resp.Display)
			continue
		}
		fmt.Fprint(s.out, resp.Display)
	}
}

func (s *replSession) ask(ctx context.Context, line string) *model.QueryResponse {
	if !s.spinner {
		return s.query.Run(ctx, line)
	}
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " Searching..."
	sp.Start()
	defer sp.Stop()
	return s.query.Run(ctx, line)
}

func isExitPhrase(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), exitPhrase)
}

var _ querier = (*service.QueryService)(nil)
