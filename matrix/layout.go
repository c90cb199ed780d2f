package matrix

// Span is a vertical run of consecutive rows sharing one question label.
type Span struct {
	Question string
	Start    int
	Len      int
}

// End returns the index one past the last row of the span.
func (s Span) End() int {
	return s.Start + s.Len
}

// Merged reports whether the span covers more than one row.
func (s Span) Merged() bool {
	return s.Len > 1
}

// MergedLayout computes one span per run of consecutive rows with the same
// question. It does not reorder or modify rows.
func MergedLayout(rows []Row) []Span {
	var spans []Span
	for i, row := range rows {
		if n := len(spans); n > 0 && spans[n-1].Question == row.Question {
			spans[n-1].Len++
			continue
		}
		spans = append(spans, Span{Question: row.Question, Start: i, Len: 1})
	}
	return spans
}
