package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/c360studio/qualcoder/matrix"
)

// header returns the matrix column titles.
func header(m *matrix.Matrix) []string {
	h := make([]string, 0, len(m.InterviewIDs)+3)
	h = append(h, "Question", "Code")
	h = append(h, m.InterviewIDs...)
	return append(h, "Count")
}

func presence(present bool) int {
	if present {
		return 1
	}
	return 0
}

// WriteMatrixCSV writes the matrix as CSV. With mergeQuestion the question
// label is written only on the first row of each span.
func WriteMatrixCSV(w io.Writer, m *matrix.Matrix, mergeQuestion bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(m)); err != nil {
		return err
	}

	for _, span := range m.Spans() {
		for r := span.Start; r < span.End(); r++ {
			row := m.Rows[r]
			label := row.Question
			if mergeQuestion && r != span.Start {
				label = ""
			}
			record := make([]string, 0, len(row.Present)+3)
			record = append(record, label, row.Code)
			for _, p := range row.Present {
				record = append(record, strconv.Itoa(presence(p)))
			}
			record = append(record, strconv.Itoa(row.Count))
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
