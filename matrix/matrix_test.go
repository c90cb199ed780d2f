package matrix_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/interview"
	"github.com/c360studio/qualcoder/matrix"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codesOf(rows []matrix.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Code
	}
	return out
}

func TestBuild_FrequencyOrdering(t *testing.T) {
	// Counts A:2, B:3, C:1, discovered A, B, C.
	src := matrix.Source{
		Keys:         []string{"Q"},
		InterviewIDs: []string{"i1", "i2", "i3"},
		Vocabularies: map[string][]string{"Q": {"A", "B", "C"}},
		Assignments: map[string]map[string][]string{
			"i1": {"Q": {"A", "B"}},
			"i2": {"Q": {"B", "C"}},
			"i3": {"Q": {"A", "B"}},
		},
	}

	m := matrix.Build(src)
	assert.Equal(t, []string{"B", "A", "C"}, codesOf(m.Rows))
	assert.Equal(t, 3, m.Rows[0].Count)
	assert.Equal(t, 2, m.Rows[1].Count)
	assert.Equal(t, []bool{true, false, true}, m.Rows[1].Present)
	assert.True(t, m.PresentIn(2, "i2"))
	assert.False(t, m.PresentIn(2, "i1"))
	assert.False(t, m.PresentIn(2, "missing"))
}

func TestBuild_QuestionOrderAndTies(t *testing.T) {
	src := matrix.Source{
		Keys:         []string{"Second", "First"},
		InterviewIDs: []string{"a", "b"},
		Vocabularies: map[string][]string{
			"First":  {"x", "y", "z"},
			"Second": {"p", "q"},
		},
		Assignments: map[string]map[string][]string{
			"a": {"First": {"x"}, "Second": {"q"}},
			"b": {"First": {"y"}, "Second": {"q", "p"}},
		},
	}

	m := matrix.Build(src)
	require.Len(t, m.Rows, 5)
	assert.Equal(t, []string{"q", "p", "x", "y", "z"}, codesOf(m.Rows))
	assert.Equal(t, "Second", m.Rows[0].Question)
	assert.Equal(t, "First", m.Rows[4].Question)
	assert.Zero(t, m.Rows[4].Count)
}

func TestBuild_UnlistedKeysFollowSorted(t *testing.T) {
	src := matrix.Source{
		Keys: []string{"B"},
		Vocabularies: map[string][]string{
			"C": {"c"},
			"A": {"a"},
			"B": {"b"},
		},
	}
	m := matrix.Build(src)
	assert.Equal(t, []string{"b", "a", "c"}, codesOf(m.Rows))
}

func TestBuild_EndToEnd(t *testing.T) {
	table, err := interview.Load(interview.Grid{
		{"Question", "I1", "I2"},
		{"What challenges?", "Access is hard", "Funding is scarce"},
	})
	require.NoError(t, err)

	classify := coding.ClassifierFunc(func(_ context.Context, _, answer string, _ []string) ([]string, error) {
		return []string{strings.Fields(answer)[0]}, nil
	})
	res, err := coding.Aggregate(context.Background(), table, classify)
	require.NoError(t, err)

	want := []matrix.Row{
		{Question: "What challenges?", Code: "Access", Present: []bool{true, false}, Count: 1},
		{Question: "What challenges?", Code: "Funding", Present: []bool{false, true}, Count: 1},
	}
	m := matrix.Build(matrix.FromResult(res))
	if diff := cmp.Diff(want, m.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMergedLayout(t *testing.T) {
	rows := []matrix.Row{
		{Question: "Q1", Code: "a"},
		{Question: "Q1", Code: "b"},
		{Question: "Q2", Code: "c"},
		{Question: "Q3", Code: "d"},
		{Question: "Q3", Code: "e"},
		{Question: "Q3", Code: "f"},
	}

	spans := matrix.MergedLayout(rows)
	assert.Equal(t, []matrix.Span{
		{Question: "Q1", Start: 0, Len: 2},
		{Question: "Q2", Start: 2, Len: 1},
		{Question: "Q3", Start: 3, Len: 3},
	}, spans)
	assert.True(t, spans[0].Merged())
	assert.False(t, spans[1].Merged())
	assert.Equal(t, 6, spans[2].End())

	assert.Empty(t, matrix.MergedLayout(nil))
}

func TestRender(t *testing.T) {
	m := &matrix.Matrix{
		InterviewIDs: []string{"I1", "I2"},
		Rows: []matrix.Row{
			{Question: "Why now?", Code: "Access", Present: []bool{true, true}, Count: 2},
			{Question: "Why now?", Code: "Funding", Present: []bool{false, true}, Count: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, matrix.Render(&buf, m))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "Why now?"))
	assert.Equal(t, 3, strings.Count(out, "✅"))
	assert.Equal(t, 1, strings.Count(out, "-"))
	assert.Less(t, strings.Index(out, "Access"), strings.Index(out, "Funding"))
	for _, h := range []string{"Question", "Code", "I1", "I2", "Count"} {
		assert.Contains(t, out, h)
	}
}
