package main

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/qualcoder/interview"
	"github.com/c360studio/qualcoder/transcript"
	"github.com/spf13/cobra"
)

type extractOptions struct {
	questionnaire string
	sheet         string
	transcripts   []string
	output        string
	model         string
	maxChars      int
}

func extractCmd(global *globalOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Build an interview table from transcripts",
		Long: `Extract answers every questionnaire question from each transcript and
writes an interview table that "qualcoder code" can read.

Questions are taken from the first column of the questionnaire. Transcripts
may be markdown, plain text, HTML or PDF; patterns support ** and {a,b}.
Answers the model cannot find are left blank.`,
		Example: `  qualcoder extract --questionnaire questions.xlsx --transcripts "transcripts/**/*.{md,txt}" -o grid.xlsx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model") {
				cfg.Model.Default = opts.model
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := slog.Default()
			ctx := cmd.Context()

			qgrid, err := interview.ReadFile(opts.questionnaire, interview.ReadOptions{Sheet: opts.sheet})
			if err != nil {
				return fmt.Errorf("read questionnaire: %w", err)
			}
			questions := interview.Questionnaire(qgrid)
			if len(questions) == 0 {
				return fmt.Errorf("questionnaire %s has no questions", opts.questionnaire)
			}

			files, err := transcript.Expand(opts.transcripts)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no transcripts match %v", opts.transcripts)
			}

			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				app.Close()
				return err
			}
			defer app.Close()

			extOpts := []transcript.ExtractorOption{
				transcript.WithExtractorModel(cfg.Model.Default),
				transcript.WithExtractorLogger(logger),
			}
			if opts.maxChars > 0 {
				extOpts = append(extOpts, transcript.WithMaxChars(opts.maxChars))
			}
			pipeline := &transcript.Pipeline{
				Registry: transcript.NewRegistry(),
				Answerer: transcript.NewExtractor(app.client, extOpts...),
				Logger:   logger,
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Extracting %d questions from %d transcripts\n", len(questions), len(files))

			interviews, err := pipeline.Run(ctx, questions, files)
			if err != nil {
				return err
			}

			if err := interview.WriteFile(opts.output, transcript.Build(questions, interviews)); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			fmt.Fprintf(out, "Wrote %s (%d interviews)\n", opts.output, len(interviews))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.questionnaire, "questionnaire", "q", "", "Questionnaire file (.xlsx, .csv or .tsv)")
	f.StringVar(&opts.sheet, "sheet", "", "Questionnaire worksheet (default: first sheet)")
	f.StringSliceVarP(&opts.transcripts, "transcripts", "t", nil, "Transcript files or glob patterns")
	f.StringVarP(&opts.output, "output", "o", "interviews.xlsx", "Output table (.xlsx, .csv or .tsv)")
	f.StringVarP(&opts.model, "model", "m", "", "Model used for extraction (overrides model.default)")
	f.IntVar(&opts.maxChars, "max-chars", 0, "Truncate transcripts to this many characters")
	_ = cmd.MarkFlagRequired("questionnaire")
	_ = cmd.MarkFlagRequired("transcripts")

	return cmd
}
