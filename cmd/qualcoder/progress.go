package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/qualcoder/coding"
)

// progressPrinter prints one line per classified cell.
type progressPrinter struct {
	coding.NopObserver

	mu   sync.Mutex
	w    io.Writer
	rows int
}

func newProgressPrinter(w io.Writer, rows int) *progressPrinter {
	return &progressPrinter{w: w, rows: rows}
}

func (p *progressPrinter) CellCompleted(cell coding.Cell, codes []string, elapsed time.Duration) {
	result := "(no codes)"
	if len(codes) > 0 {
		result = strings.Join(codes, ", ")
	}
	p.printf("[%d/%d] %s | %s: %q -> %s (%s)\n",
		cell.Row+1, p.rows, cell.Question, cell.InterviewID, clip(cell.Answer, 60), result, elapsed.Round(time.Millisecond))
}

func (p *progressPrinter) CellFailed(cell coding.Cell, err error, elapsed time.Duration) {
	p.printf("[%d/%d] %s | %s: FAILED after %s: %v\n",
		cell.Row+1, p.rows, cell.Question, cell.InterviewID, elapsed.Round(time.Millisecond), err)
}

func (p *progressPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// clip shortens s to n runes on one line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
