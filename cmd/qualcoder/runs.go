package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/c360studio/qualcoder/llm"
	"github.com/c360studio/qualcoder/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	runsHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	runsCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func runsCmd(global *globalOptions) *cobra.Command {
	var natsURL string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored coding runs",
		Long:  `Runs reads coding runs persisted in NATS JetStream (requires nats.url).`,
	}
	cmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides nats.url)")

	// openStore starts an app with storage only.
	openStore := func(cmd *cobra.Command) (*App, *storage.Store, error) {
		cfg, err := loadConfig(global)
		if err != nil {
			return nil, nil, err
		}
		if cmd.Flags().Changed("nats-url") {
			cfg.NATS.URL = natsURL
		}
		cfg.Metrics.Addr = ""

		app := NewApp(cfg, slog.Default())
		if err := app.Start(cmd.Context()); err != nil {
			app.Close()
			return nil, nil, err
		}
		store, err := app.requireStore()
		if err != nil {
			app.Close()
			return nil, nil, err
		}
		return app, store, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run with its failed cells and LLM calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			cells, err := store.ListCells(ctx, run.ID)
			if err != nil {
				return err
			}
			var calls []*llm.CallRecord
			if cs, err := store.CallStore(); err == nil {
				if calls, err = cs.ListByTrace(ctx, run.ID); err != nil {
					return err
				}
			}
			printRun(cmd.OutOrStdout(), run, cells, calls)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print the stored run as JSON")

	cmd.AddCommand(list, show)
	return cmd
}

func printRuns(w io.Writer, runs []*storage.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs stored.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Status", "Model", "Input", "Calls", "Failed", "Codes", "Created").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return runsHeaderStyle
			}
			return runsCellStyle
		})
	for _, r := range runs {
		t.Row(r.ID, string(r.Status), r.Model, r.Input,
			strconv.Itoa(r.Calls), strconv.Itoa(r.Failures), strconv.Itoa(r.TotalCodes),
			r.CreatedAt.Local().Format(time.DateTime))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printRun(w io.Writer, run *storage.Run, cells []*storage.CellOutcome, calls []*llm.CallRecord) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  Status:     %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:      %s\n", run.Error)
	}
	fmt.Fprintf(w, "  Input:      %s\n", run.Input)
	fmt.Fprintf(w, "  Model:      %s\n", run.Model)
	fmt.Fprintf(w, "  Scope:      %s\n", run.Scope)
	fmt.Fprintf(w, "  Questions:  %d\n", run.Questions)
	fmt.Fprintf(w, "  Interviews: %d\n", run.Interviews)
	fmt.Fprintf(w, "  Calls:      %d (%d failed, %d skipped)\n", run.Calls, run.Failures, run.Skipped)
	fmt.Fprintf(w, "  Created:    %s\n", run.CreatedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil && run.StartedAt != nil {
		fmt.Fprintf(w, "  Duration:   %s\n", run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond))
	}

	if len(run.Vocabularies) > 0 {
		fmt.Fprintln(w, "\nVocabularies:")
		for _, v := range run.Vocabularies {
			fmt.Fprintf(w, "  %s (%d)\n", v.Key, len(v.Codes))
			for _, code := range v.Codes {
				fmt.Fprintf(w, "    - %s\n", code)
			}
		}
	}

	var failed []*storage.CellOutcome
	for _, c := range cells {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(w, "\nFailed cells:")
		for _, c := range failed {
			fmt.Fprintf(w, "  row %d %q, interview %q: %s\n", c.Row+1, c.Question, c.InterviewID, c.Error)
		}
	}

	if len(calls) > 0 {
		var tokens, retries int
		var fallbacks int
		for _, c := range calls {
			tokens += c.TotalTokens
			retries += c.Retries
			if len(c.FallbacksUsed) > 0 {
				fallbacks++
			}
		}
		fmt.Fprintf(w, "\nLLM calls: %d (%d tokens, %d retries, %d used a fallback model)\n",
			len(calls), tokens, retries, fallbacks)
	}
}
