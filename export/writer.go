package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/c360studio/qualcoder/matrix"
)

// TimestampLayout prefixes artifact filenames.
const TimestampLayout = "20060102_150405"

// ExportError reports one artifact that could not be written.
type ExportError struct {
	Artifact Kind
	Path     string
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s to %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Artifact is a file written by a Writer.
type Artifact struct {
	Kind   Kind
	Format Format
	Path   string
}

// Writer writes every configured artifact of a run into one directory.
type Writer struct {
	Dir     string
	Model   string
	Formats []Format

	// Timestamp prefixes filenames with the run time.
	Timestamp bool

	// MergeQuestion blanks repeated question labels in CSV output.
	MergeQuestion bool

	Now    func() time.Time
	Logger *slog.Logger
}

// NewWriter creates a writer with default formats, timestamped names and
// merged question labels.
func NewWriter(dir, model string) *Writer {
	return &Writer{
		Dir:           dir,
		Model:         model,
		Formats:       DefaultFormats,
		Timestamp:     true,
		MergeQuestion: true,
		Now:           time.Now,
		Logger:        slog.Default(),
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeModel makes a model identifier safe for use in filenames.
func SanitizeModel(model string) string {
	s := unsafeName.ReplaceAllString(model, "-")
	if s == "" {
		return "model"
	}
	return s
}

// FileName returns the artifact filename for a kind and format.
func FileName(ts time.Time, model string, kind Kind, format Format) string {
	name := fmt.Sprintf("%s_%s.%s", SanitizeModel(model), kind, format)
	if ts.IsZero() {
		return name
	}
	return ts.Format(TimestampLayout) + "_" + name
}

// WriteAll writes every artifact for src. Artifacts are written independently:
// a failure is reported as an *ExportError and the remaining artifacts are
// still attempted. Successfully written artifacts are returned even when the
// error is non-nil.
func (w *Writer) WriteAll(src matrix.Source) ([]Artifact, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	formats := w.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, &ExportError{Path: w.Dir, Err: err}
	}

	var ts time.Time
	if w.Timestamp {
		now := w.Now
		if now == nil {
			now = time.Now
		}
		ts = now()
	}

	var m *matrix.Matrix
	var written []Artifact
	var errs []error

	for _, format := range formats {
		if !format.Valid() {
			errs = append(errs, &ExportError{Path: w.Dir, Err: fmt.Errorf("unknown format %q", format)})
			continue
		}
		for _, kind := range format.Kinds() {
			path := filepath.Join(w.Dir, FileName(ts, w.Model, kind, format))

			var err error
			switch kind {
			case KindAggregated:
				err = writeFile(path, func(f *os.File) error {
					return WriteAggregated(f, src.Keys, src.Vocabularies)
				})
			case KindInterviews:
				err = writeFile(path, func(f *os.File) error {
					return WriteInterviewCodes(f, src.InterviewIDs, src.Keys, src.Assignments)
				})
			case KindMatrix:
				if m == nil {
					m = matrix.Build(src)
				}
				if format == FormatXLSX {
					err = WriteMatrixXLSX(path, m)
				} else {
					err = writeFile(path, func(f *os.File) error {
						return WriteMatrixCSV(f, m, w.MergeQuestion)
					})
				}
			}

			if err != nil {
				logger.Error("Failed to write artifact", "artifact", kind, "path", path, "error", err)
				errs = append(errs, &ExportError{Artifact: kind, Path: path, Err: err})
				continue
			}
			logger.Info("Wrote artifact", "artifact", kind, "format", format, "path", path)
			written = append(written, Artifact{Kind: kind, Format: format, Path: path})
		}
	}

	return written, errors.Join(errs...)
}

func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
