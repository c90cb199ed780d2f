package interview

import "fmt"

// MalformedInputError reports a grid that cannot be turned into a table:
// too small, or missing one of the required axes.
type MalformedInputError struct {
	Rows   int
	Cols   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed interview grid (%d rows x %d cols): %s", e.Rows, e.Cols, e.Reason)
}
