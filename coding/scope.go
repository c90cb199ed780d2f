package coding

import (
	"fmt"
	"strings"
)

// Scope decides which rows share a running vocabulary.
type Scope string

const (
	// ScopeQuestionText shares one vocabulary between all rows with the same
	// question text. Results are keyed by the question text.
	ScopeQuestionText Scope = "question_text"

	// ScopeRow gives every row its own vocabulary. A repeated question is keyed
	// "<question> (#n)" for its n-th occurrence.
	ScopeRow Scope = "row"
)

// ParseScope parses a scope name. Empty selects ScopeQuestionText.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeQuestionText:
		return ScopeQuestionText, nil
	case ScopeRow:
		return ScopeRow, nil
	default:
		return "", fmt.Errorf("unknown vocabulary scope %q (want %s or %s)", s, ScopeQuestionText, ScopeRow)
	}
}

// rowKeys assigns a vocabulary key to every row.
func rowKeys(questions []string, scope Scope) []string {
	keys := make([]string, len(questions))
	if scope != ScopeRow {
		copy(keys, questions)
		return keys
	}

	used := make(map[string]bool, len(questions))
	occurrence := make(map[string]int, len(questions))
	for i, q := range questions {
		occurrence[q]++
		key := q
		for n := occurrence[q]; used[key]; n++ {
			key = fmt.Sprintf("%s (#%d)", q, n)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}
