package matrix

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	markPresent = "✅"
	markAbsent  = "-"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	countStyle  = cellStyle.Align(lipgloss.Right)
)

// Render writes the matrix as a bordered terminal table. The question label
// appears only on the first row of each span.
func Render(w io.Writer, m *Matrix) error {
	header := append([]string{"Question", "Code"}, m.InterviewIDs...)
	header = append(header, "Count")
	countCol := len(header) - 1

	rows := make([][]string, 0, len(m.Rows))
	for _, span := range m.Spans() {
		for r := span.Start; r < span.End(); r++ {
			row := m.Rows[r]
			label := ""
			if r == span.Start {
				label = row.Question
			}
			cells := make([]string, 0, len(header))
			cells = append(cells, label, row.Code)
			for _, present := range row.Present {
				if present {
					cells = append(cells, markPresent)
				} else {
					cells = append(cells, markAbsent)
				}
			}
			cells = append(cells, strconv.Itoa(row.Count))
			rows = append(rows, cells)
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == countCol:
				return countStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}
