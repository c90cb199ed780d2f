package export

import (
	"fmt"

	"github.com/c360studio/qualcoder/matrix"
	"github.com/xuri/excelize/v2"
)

// MatrixSheet is the worksheet name of the matrix workbook.
const MatrixSheet = "CodingMatrix"

// BuildMatrixWorkbook lays the matrix out on a single sheet with a frozen
// header row and vertically merged question cells.
func BuildMatrixWorkbook(m *matrix.Matrix) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), MatrixSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := fillMatrixSheet(f, m); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fillMatrixSheet(f *excelize.File, m *matrix.Matrix) error {
	h := header(m)
	headerRow := make([]any, len(h))
	for i, v := range h {
		headerRow[i] = v
	}
	if err := f.SetSheetRow(MatrixSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, row := range m.Rows {
		values := make([]any, 0, len(h))
		values = append(values, row.Question, row.Code)
		for _, p := range row.Present {
			values = append(values, presence(p))
		}
		values = append(values, row.Count)

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MatrixSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(h), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(MatrixSheet, "A1", lastHeader, bold); err != nil {
		return err
	}

	top, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Vertical: "top", WrapText: true}})
	if err != nil {
		return err
	}
	for _, span := range m.Spans() {
		if !span.Merged() {
			continue
		}
		first := fmt.Sprintf("A%d", span.Start+2)
		last := fmt.Sprintf("A%d", span.End()+1)
		if err := f.MergeCell(MatrixSheet, first, last); err != nil {
			return fmt.Errorf("merge %s:%s: %w", first, last, err)
		}
		if err := f.SetCellStyle(MatrixSheet, first, last, top); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(MatrixSheet, "A", "A", 48); err != nil {
		return err
	}
	if err := f.SetColWidth(MatrixSheet, "B", "B", 32); err != nil {
		return err
	}

	return f.SetPanes(MatrixSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteMatrixXLSX saves the matrix workbook to path.
func WriteMatrixXLSX(path string, m *matrix.Matrix) error {
	f, err := BuildMatrixWorkbook(m)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}
