package interview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviews.xlsx")
	grid := Grid{
		{"Question", "I1", "I2"},
		{"What challenges?", "Access is hard", "Funding is scarce"},
		{"Who helps?", "", "Neighbours"},
	}
	require.NoError(t, WriteFile(path, grid))

	got, err := ReadFile(path, ReadOptions{})
	require.NoError(t, err)

	table, err := Load(got)
	require.NoError(t, err)
	assert.Equal(t, []string{"I1", "I2"}, table.InterviewIDs())
	assert.Equal(t, []string{"What challenges?", "Who helps?"}, table.Questions())

	_, ok := table.Cell(1, "I1")
	assert.False(t, ok)
	v, ok := table.Cell(1, "I2")
	require.True(t, ok)
	assert.Equal(t, "Neighbours", v)
}

func TestReadFile_UnknownSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviews.xlsx")
	require.NoError(t, WriteFile(path, Grid{{"Q", "I1"}, {"Why?", "because"}}))

	_, err := ReadFile(path, ReadOptions{Sheet: "Missing"})
	assert.ErrorContains(t, err, `sheet "Missing" not found`)

	_, err = ReadFile(path, ReadOptions{Sheet: DefaultSheet})
	assert.NoError(t, err)
}

func TestReadFile_Delimited(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "grid.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("\ufeffQ,I1,I2\n\"What, exactly?\",yes\n"), 0o644))

	grid, err := ReadFile(csvPath, ReadOptions{})
	require.NoError(t, err)
	table, err := Load(grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"What, exactly?"}, table.Questions())
	_, ok := table.Cell(0, "I2")
	assert.False(t, ok)

	tsvPath := filepath.Join(dir, "grid.tsv")
	require.NoError(t, WriteFile(tsvPath, Grid{{"Q", "I1"}, {"Why?", "because"}}))
	grid, err = ReadFile(tsvPath, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"Q", "I1"}, {"Why?", "because"}}, grid)
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	_, err := ReadFile("interviews.docx", ReadOptions{})
	assert.ErrorContains(t, err, "unsupported input format")
}
