package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/c360studio/qualcoder/classifier"
	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/config"
	"github.com/c360studio/qualcoder/export"
	"github.com/c360studio/qualcoder/interview"
	"github.com/c360studio/qualcoder/llm"
	"github.com/c360studio/qualcoder/matrix"
	"github.com/c360studio/qualcoder/metrics"
	"github.com/c360studio/qualcoder/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type codeOptions struct {
	model       string
	outputDir   string
	formats     []string
	sheet       string
	scope       string
	parallel    int
	callTimeout time.Duration
	watch       bool
	natsURL     string
	metricsAddr string
}

func codeCmd(global *globalOptions) *cobra.Command {
	opts := &codeOptions{}

	cmd := &cobra.Command{
		Use:   "code INPUT",
		Short: "Code every answer of an interview table",
		Long: `Code reads an interview table (.xlsx, .csv or .tsv) with questions in the
first column and one column per interview, assigns thematic codes to every
answer and writes the coding matrices to the output directory.

Failed classifier calls are reported and leave the cell without codes; they
do not fail the run.`,
		Example: `  qualcoder code interviews.xlsx
  qualcoder code interviews.csv --model local-qwen --format json,csv
  qualcoder code interviews.xlsx --watch`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one INPUT file, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runCodeCommand(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.model, "model", "m", "", "Model used for coding (overrides model.default)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for exported artifacts")
	f.StringSliceVar(&opts.formats, "format", nil, "Export formats (json, csv, xlsx)")
	f.StringVar(&opts.sheet, "sheet", "", "Worksheet to read from a workbook (default: first sheet)")
	f.StringVar(&opts.scope, "scope", "", "Vocabulary scope: question_text or row")
	f.IntVar(&opts.parallel, "parallel", 0, "Number of questions coded concurrently")
	f.DurationVar(&opts.callTimeout, "call-timeout", 0, "Timeout for one classifier call")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Re-run whenever INPUT changes")
	f.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL for run storage")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// apply overrides configuration with the flags that were set.
func (o *codeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Model.Default = o.model
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if f.Changed("format") {
		cfg.Output.Formats = o.formats
	}
	if f.Changed("scope") {
		cfg.Coding.VocabularyScope = o.scope
	}
	if f.Changed("parallel") {
		cfg.Coding.ParallelQuestions = o.parallel
	}
	if f.Changed("call-timeout") {
		cfg.Model.CallTimeout = o.callTimeout
	}
	if f.Changed("nats-url") {
		cfg.NATS.URL = o.natsURL
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	return cfg.Validate()
}

func runCodeCommand(ctx context.Context, out io.Writer, cfg *config.Config, input string, opts *codeOptions) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input %s: %w", input, err)
	}

	logger := slog.Default()
	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		app.Close()
		return err
	}
	defer app.Close()

	r := &codeRun{
		cfg: cfg,
		classifier: classifier.New(app.client,
			classifier.WithModel(cfg.Model.Default),
			classifier.WithTemperature(cfg.Model.Temperature),
			classifier.WithMaxTokens(cfg.Model.MaxTokens),
			classifier.WithLogger(logger),
		),
		store:   app.store,
		metrics: app.metrics,
		out:     out,
		logger:  logger,
	}

	_, err := r.run(ctx, input, opts.sheet)
	if !opts.watch {
		return err
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Error("Coding run failed", "error", err)
	}

	return watchFile(ctx, input, watchDebounce, logger, func() {
		fmt.Fprintf(out, "\n%s changed, coding again\n", input)
		if _, err := r.run(ctx, input, opts.sheet); err != nil && ctx.Err() == nil {
			logger.Error("Coding run failed", "error", err)
		}
	})
}

// codeRun executes one coding run end to end. store and metrics are
// optional.
type codeRun struct {
	cfg        *config.Config
	classifier coding.Classifier
	store      *storage.Store
	metrics    *metrics.Recorder
	out        io.Writer
	logger     *slog.Logger

	// now overrides the export timestamp clock.
	now func() time.Time
}

// codeReport is the outcome of one run.
type codeReport struct {
	RunID     string
	Result    *coding.Result
	Artifacts []export.Artifact
}

func (r *codeRun) run(ctx context.Context, input, sheet string) (*codeReport, error) {
	grid, err := interview.ReadFile(input, interview.ReadOptions{Sheet: sheet})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	table, err := interview.Load(grid)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", input, err)
	}
	formats, err := export.ParseFormats(r.cfg.Output.Formats)
	if err != nil {
		return nil, err
	}

	report := &codeReport{RunID: uuid.New().String()}
	r.logger.Info("Coding run started",
		"run_id", report.RunID,
		"input", input,
		"model", r.cfg.Model.Default,
		"questions", table.NumQuestions(),
		"interviews", table.NumInterviews(),
		"responses", table.Responses())

	observers := coding.Observers{newProgressPrinter(r.out, table.NumQuestions())}
	if r.metrics != nil {
		observers = append(observers, r.metrics)
	}

	var recorder *storage.Recorder
	if r.store != nil {
		run := &storage.Run{ID: report.RunID, Input: input, Model: r.cfg.Model.Default, Scope: string(r.cfg.Scope())}
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		if _, err := r.store.UpdateRunStatus(ctx, report.RunID, storage.RunStatusRunning, ""); err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
		recorder = storage.NewRecorder(ctx, r.store, r.logger)
		observers = append(observers, recorder)
	}

	traced := llm.WithTraceContext(ctx, llm.TraceContext{TraceID: report.RunID})
	res, err := coding.Aggregate(traced, table, r.classifier,
		coding.WithRunID(report.RunID),
		coding.WithScope(r.cfg.Scope()),
		coding.WithParallelism(r.cfg.Coding.ParallelQuestions),
		coding.WithCallTimeout(r.cfg.Model.CallTimeout),
		coding.WithRawCodes(!r.cfg.TrimCodes()),
		coding.WithObserver(observers),
		coding.WithLogger(r.logger),
	)
	report.Result = res
	if err != nil {
		status := "failed"
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		r.finish(report, status, err)
		return report, fmt.Errorf("coding run %s: %w", report.RunID, err)
	}

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			r.logger.Warn("Some cell outcomes were not stored", "run_id", report.RunID, "error", err)
		}
	}

	w := export.NewWriter(r.cfg.Output.Dir, r.cfg.Model.Default)
	w.Formats = formats
	w.Timestamp = r.cfg.Timestamped()
	w.MergeQuestion = r.cfg.MergeQuestion()
	w.Logger = r.logger
	if r.now != nil {
		w.Now = r.now
	}

	report.Artifacts, err = w.WriteAll(matrix.FromResult(res))
	printSummary(r.out, report)
	if err != nil {
		r.finish(report, "failed", err)
		return report, err
	}

	r.finish(report, "complete", nil)
	return report, nil
}

// finish records the final run state in metrics and storage.
func (r *codeRun) finish(report *codeReport, status string, runErr error) {
	if r.metrics != nil {
		r.metrics.RunFinished(status)
	}
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := r.store.GetRun(ctx, report.RunID)
	if err != nil {
		r.logger.Warn("Run not stored", "run_id", report.RunID, "error", err)
		return
	}
	if report.Result != nil {
		run.ApplyResult(report.Result)
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		r.logger.Warn("Run not stored", "run_id", report.RunID, "error", err)
		return
	}

	target, msg := storage.RunStatusComplete, ""
	if runErr != nil {
		target, msg = storage.RunStatusFailed, runErr.Error()
	}
	if _, err := r.store.UpdateRunStatus(ctx, report.RunID, target, msg); err != nil {
		r.logger.Warn("Run status not stored", "run_id", report.RunID, "error", err)
	}
}

func printSummary(w io.Writer, report *codeReport) {
	res := report.Result
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "  Questions:    %d\n", len(res.RowKeys))
	fmt.Fprintf(w, "  Interviews:   %d\n", len(res.InterviewIDs))
	fmt.Fprintf(w, "  Calls:        %d\n", res.Calls)
	fmt.Fprintf(w, "  Skipped:      %d\n", res.Skipped)
	fmt.Fprintf(w, "  Failed cells: %d\n", res.FailedCells())
	fmt.Fprintf(w, "  Codes:        %d\n", res.TotalCodes())
	fmt.Fprintf(w, "  Duration:     %s\n", res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))

	for _, f := range res.Failures {
		fmt.Fprintf(w, "  ! %s\n", f.Error())
	}
	if len(report.Artifacts) > 0 {
		fmt.Fprintln(w, "Artifacts:")
		for _, a := range report.Artifacts {
			fmt.Fprintf(w, "  %s\n", a.Path)
		}
	}
}
