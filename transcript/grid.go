package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/c360studio/qualcoder/interview"
)

// Interview is the extracted answers of one transcript.
type Interview struct {
	ID      string
	Answers []string
}

// Build lays out an interview grid: a "Question" header row followed by
// one row per question, one column per interview.
func Build(questions []string, interviews []Interview) interview.Grid {
	header := make([]string, 0, len(interviews)+1)
	header = append(header, "Question")
	for _, iv := range interviews {
		header = append(header, iv.ID)
	}

	grid := interview.Grid{header}
	for q, question := range questions {
		row := make([]string, 0, len(interviews)+1)
		row = append(row, question)
		for _, iv := range interviews {
			answer := ""
			if q < len(iv.Answers) {
				answer = iv.Answers[q]
			}
			row = append(row, answer)
		}
		grid = append(grid, row)
	}
	return grid
}

// Answerer answers questions from one parsed transcript.
type Answerer interface {
	Extract(ctx context.Context, questions []string, doc *Document) ([]string, error)
}

// Pipeline parses transcript files and extracts their answers.
type Pipeline struct {
	Registry *Registry
	Answerer Answerer
	Logger   *slog.Logger
}

// Run processes files in order. Unreadable or unparseable files are
// errors. A failed extraction leaves the interview's answers blank and is
// logged, so one bad model response does not lose the other transcripts.
func (p *Pipeline) Run(ctx context.Context, questions []string, files []string) ([]Interview, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := p.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	ids := InterviewIDs(files)
	interviews := make([]Interview, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return interviews, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}
		doc, err := registry.Parse(path, content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		answers, err := p.Answerer.Extract(ctx, questions, doc)
		if err != nil {
			if ctx.Err() != nil {
				return interviews, ctx.Err()
			}
			logger.Warn("Extraction failed, leaving answers blank",
				"transcript", path,
				"error", err)
			answers = make([]string, len(questions))
		}
		interviews = append(interviews, Interview{ID: ids[i], Answers: answers})
	}
	return interviews, nil
}
