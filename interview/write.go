package interview

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used when writing grids.
const DefaultSheet = "Interviews"

// WriteFile writes a grid as .xlsx, .csv or .tsv depending on the extension.
func WriteFile(path string, grid Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return writeWorkbook(path, grid)
	case ".csv":
		return writeDelimited(path, ',', grid)
	case ".tsv":
		return writeDelimited(path, '\t', grid)
	default:
		return fmt.Errorf("unsupported output format %q (want .xlsx, .csv or .tsv)", ext)
	}
}

func writeWorkbook(path string, grid Grid) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DefaultSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for r, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := append([]string(nil), row...)
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeDelimited(path string, comma rune, grid Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.WriteAll(grid); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
