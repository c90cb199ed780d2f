package coding

import (
	"context"
	"errors"
)

// ErrMalformedCodes is returned by classifiers whose backend answered with
// something that could not be read as a list of codes.
var ErrMalformedCodes = errors.New("malformed classifier output")

// Classifier maps a question, an answer and the codes already known for the
// question to the codes that apply to the answer. The returned list may
// repeat existing codes, introduce new ones, contain duplicates, or be empty.
type Classifier interface {
	Classify(ctx context.Context, question, answer string, existing []string) ([]string, error)
}

// ClassifierFunc adapts an ordinary function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, question, answer string, existing []string) ([]string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, question, answer string, existing []string) ([]string, error) {
	return f(ctx, question, answer, existing)
}
