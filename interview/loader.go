package interview

import (
	"fmt"
	"strings"
)

// Load validates a raw grid and converts it into a Table.
//
// Row 0 holds interview identifiers in columns 1..n and column 0 of rows
// 1..m holds question text. Blank or whitespace-only response cells become
// absent responses. Rows that are blank in every column are dropped. A blank
// header cell is named after its spreadsheet column ("Interview C").
func Load(grid Grid) (*Table, error) {
	rows, cols := dimensions(grid)
	if rows < 2 || cols < 2 {
		return nil, &MalformedInputError{
			Rows:   rows,
			Cols:   cols,
			Reason: "need a header row of interview ids and at least one question row",
		}
	}

	ids := make([]string, 0, cols-1)
	seen := make(map[string]int, cols-1)
	for c := 1; c < cols; c++ {
		id := cleanCell(cellAt(grid, 0, c))
		if id == "" {
			id = "Interview " + ColumnName(c)
		}
		if prev, dup := seen[id]; dup {
			return nil, &MalformedInputError{
				Rows:   rows,
				Cols:   cols,
				Reason: fmt.Sprintf("interview id %q repeated in columns %s and %s", id, ColumnName(prev), ColumnName(c)),
			}
		}
		seen[id] = c
		ids = append(ids, id)
	}

	var questions []string
	var sourceRows []int
	for r := 1; r < rows; r++ {
		if blankRow(grid[r]) {
			continue
		}
		question := cleanCell(cellAt(grid, r, 0))
		if question == "" {
			return nil, &MalformedInputError{
				Rows:   rows,
				Cols:   cols,
				Reason: fmt.Sprintf("row %d has responses but no question text", r+1),
			}
		}
		questions = append(questions, question)
		sourceRows = append(sourceRows, r)
	}
	if len(questions) == 0 {
		return nil, &MalformedInputError{Rows: rows, Cols: cols, Reason: "no question rows"}
	}

	table, err := NewTable(questions, ids)
	if err != nil {
		return nil, err
	}
	for q, r := range sourceRows {
		for i := range ids {
			if v := cellAt(grid, r, i+1); strings.TrimSpace(v) != "" {
				table.Set(q, i, cleanCell(v))
			}
		}
	}
	return table, nil
}

// Questionnaire extracts a list of questions from column 0 of every row,
// skipping blank cells.
func Questionnaire(grid Grid) []string {
	var out []string
	for r := range grid {
		if q := cleanCell(cellAt(grid, r, 0)); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// ColumnName returns the spreadsheet letter name of a zero-based column.
func ColumnName(col int) string {
	name := ""
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}

func dimensions(grid Grid) (rows, cols int) {
	rows = len(grid)
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return rows, cols
}

func cellAt(grid Grid, r, c int) string {
	if r >= len(grid) || c >= len(grid[r]) {
		return ""
	}
	return grid[r][c]
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}
