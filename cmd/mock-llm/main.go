// Package main implements an offline OpenAI-compatible LLM endpoint for
// running qualcoder without a real model.
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures]
//
// Requests are answered in this order:
//
//  1. Fixtures. JSON files named by model ("mock-coder.json" answers model
//     "mock-coder"). Numbered files ("mock-coder.1.json", "mock-coder.2.json")
//     are returned in call order; the base file repeats after they run out.
//  2. Coding prompts (they carry an "Existing Codes:" line) get a
//     deterministic {"thematic_codes": [...]} answer that reuses existing
//     codes mentioned in the answer and derives one new code from it.
//  3. Extraction prompts (a "## Questions" list followed by a transcript) get
//     {"answers": {...}} taken from the transcript line after each question.
//
// Anything else is a 404.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	dir := flag.String("fixtures", os.Getenv("MOCK_LLM_FIXTURES"), "directory of fixture response files (optional)")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*dir, *port, logger); err != nil {
		logger.Error("Mock LLM server failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string, port int, logger *slog.Logger) error {
	var fixtures fixtureSet
	if dir != "" {
		var err error
		if fixtures, err = loadFixtures(dir); err != nil {
			return err
		}
		for _, name := range fixtures.models() {
			logger.Info("Loaded fixtures", "model", name, "responses", len(fixtures[name]))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newServer(fixtures, logger).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Mock LLM server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
