package export_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/qualcoder/export"
	"github.com/c360studio/qualcoder/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSource() matrix.Source {
	return matrix.Source{
		Keys:         []string{"Zeta question", "Alpha question"},
		InterviewIDs: []string{"I2", "I1"},
		Vocabularies: map[string][]string{
			"Zeta question":  {"Access", "Funding", "Time"},
			"Alpha question": {"Trust <&>"},
		},
		Assignments: map[string]map[string][]string{
			"I2": {"Zeta question": {"Access", "Funding"}, "Alpha question": {}},
			"I1": {"Zeta question": {"Funding"}},
		},
	}
}

func TestWriteAggregated_PreservesOrder(t *testing.T) {
	src := sampleSource()
	var buf bytes.Buffer
	require.NoError(t, export.WriteAggregated(&buf, src.Keys, src.Vocabularies))

	out := buf.String()
	assert.Less(t, strings.Index(out, "Zeta question"), strings.Index(out, "Alpha question"))
	assert.Contains(t, out, `"Trust <&>"`)
	assert.Contains(t, out, "\n    \"Zeta question\": [\n        \"Access\",")

	keys, vocab, err := export.ReadAggregated(&buf)
	require.NoError(t, err)
	assert.Equal(t, src.Keys, keys)
	assert.Equal(t, src.Vocabularies, vocab)
}

func TestWriteInterviewCodes_PreservesOrder(t *testing.T) {
	src := sampleSource()
	var buf bytes.Buffer
	require.NoError(t, export.WriteInterviewCodes(&buf, src.InterviewIDs, src.Keys, src.Assignments))

	out := buf.String()
	assert.Less(t, strings.Index(out, `"I2"`), strings.Index(out, `"I1"`))
	assert.Contains(t, out, `"Alpha question": []`)

	ids, keys, assignments, err := export.ReadInterviewCodes(&buf)
	require.NoError(t, err)
	assert.Equal(t, src.InterviewIDs, ids)
	assert.Equal(t, []string{"Zeta question", "Alpha question"}, keys)
	assert.Equal(t, src.Assignments, assignments)
}

func TestReadAggregated_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `["a"]`},
		{"codes not a list", `{"Q": "a"}`},
		{"truncated", `{"Q": ["a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := export.ReadAggregated(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWriteMatrixCSV(t *testing.T) {
	m := matrix.Build(sampleSource())

	t.Run("merged", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export.WriteMatrixCSV(&buf, m, true))
		assert.Equal(t, strings.Join([]string{
			"Question,Code,I2,I1,Count",
			"Zeta question,Funding,1,1,2",
			",Access,1,0,1",
			",Time,0,0,0",
			"Alpha question,Trust <&>,0,0,0",
			"",
		}, "\n"), buf.String())
	})

	t.Run("repeated labels", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export.WriteMatrixCSV(&buf, m, false))
		assert.Contains(t, buf.String(), "Zeta question,Access,1,0,1")
	})
}

func TestBuildMatrixWorkbook(t *testing.T) {
	m := matrix.Build(sampleSource())
	path := filepath.Join(t.TempDir(), "matrix.xlsx")
	require.NoError(t, export.WriteMatrixXLSX(path, m))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.MatrixSheet}, f.GetSheetList())

	rows, err := f.GetRows(export.MatrixSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Question", "Code", "I2", "I1", "Count"}, rows[0])
	assert.Equal(t, []string{"Zeta question", "Funding", "1", "1", "2"}, rows[1])
	assert.Equal(t, []string{"Alpha question", "Trust <&>", "0", "0", "0"}, rows[4])

	merged, err := f.GetMergeCells(export.MatrixSheet)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A2", merged[0].GetStartAxis())
	assert.Equal(t, "A4", merged[0].GetEndAxis())
	assert.Equal(t, "Zeta question", merged[0].GetCellValue())

	panes, err := f.GetPanes(export.MatrixSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
	assert.Equal(t, "A2", panes.TopLeftCell)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 2, 3, 14, 5, 6, 0, time.UTC)
	tests := []struct {
		name   string
		ts     time.Time
		model  string
		kind   export.Kind
		format export.Format
		want   string
	}{
		{"aggregated", ts, "gpt-4o-mini", export.KindAggregated, export.FormatJSON, "20250203_140506_gpt-4o-mini_aggregated_codes.json"},
		{"matrix", ts, "gpt-4o-mini", export.KindMatrix, export.FormatXLSX, "20250203_140506_gpt-4o-mini_coding_matrix.xlsx"},
		{"sanitized", ts, "ollama/llama3:8b", export.KindMatrix, export.FormatCSV, "20250203_140506_ollama-llama3-8b_coding_matrix.csv"},
		{"no timestamp", time.Time{}, "m", export.KindInterviews, export.FormatJSON, "m_interview_codes.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, export.FileName(tt.ts, tt.model, tt.kind, tt.format))
		})
	}
}

func TestParseFormats(t *testing.T) {
	got, err := export.ParseFormats([]string{"json,CSV", "xlsx", "json"})
	require.NoError(t, err)
	assert.Equal(t, []export.Format{export.FormatJSON, export.FormatCSV, export.FormatXLSX}, got)

	_, err = export.ParseFormats([]string{"parquet"})
	assert.Error(t, err)
}

func TestWriter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	w := export.NewWriter(dir, "gpt-4o-mini")
	w.Formats = []export.Format{export.FormatJSON, export.FormatCSV, export.FormatXLSX}
	w.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	artifacts, err := w.WriteAll(sampleSource())
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	for _, a := range artifacts {
		assert.FileExists(t, a.Path)
		assert.True(t, strings.HasPrefix(filepath.Base(a.Path), "20250101_000000_gpt-4o-mini_"))
	}

	src, err := export.LoadSource(artifacts[0].Path, artifacts[1].Path)
	require.NoError(t, err)
	assert.Equal(t, sampleSource().Keys, src.Keys)
	assert.Equal(t, sampleSource().InterviewIDs, src.InterviewIDs)
}

func TestWriter_IndependentArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := export.NewWriter(dir, "m")
	w.Timestamp = false

	// A directory squatting on the workbook path makes only that write fail.
	blocked := filepath.Join(dir, "m_coding_matrix.xlsx")
	require.NoError(t, os.Mkdir(blocked, 0o755))

	artifacts, err := w.WriteAll(sampleSource())
	require.Error(t, err)

	var exportErr *export.ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, export.KindMatrix, exportErr.Artifact)
	assert.Equal(t, blocked, exportErr.Path)

	require.Len(t, artifacts, 2)
	assert.Equal(t, export.KindAggregated, artifacts[0].Kind)
	assert.Equal(t, export.KindInterviews, artifacts[1].Kind)
	assert.FileExists(t, filepath.Join(dir, "m_aggregated_codes.json"))
}

func TestFormatKinds(t *testing.T) {
	assert.Equal(t, []export.Kind{export.KindAggregated, export.KindInterviews}, export.FormatJSON.Kinds())
	assert.Equal(t, []export.Kind{export.KindMatrix}, export.FormatXLSX.Kinds())
	assert.False(t, export.Format("parquet").Valid())
	assert.Equal(t, []string{"csv", "json", "xlsx"}, export.SupportedFormats())
}
