package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"thematic_codes": ["Access"]}`,
			wantKey: "thematic_codes",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"thematic_codes\": [\"Access\"]}\n```",
			wantKey: "thematic_codes",
		},
		{
			name:    "code block with trailing prose",
			input:   "```json\n{\"thematic_codes\": []}\n```\n\nThese codes capture the answer {roughly}.",
			wantKey: "thematic_codes",
		},
		{
			name:    "prose before and after",
			input:   "Here you go: {\"answers\": {\"Q1\": \"yes\"}} Hope that helps!",
			wantKey: "answers",
		},
		{
			name:    "braces inside strings",
			input:   `{"thematic_codes": ["Use of {templates}", "Close } brace"]}`,
			wantKey: "thematic_codes",
		},
		{
			name:    "comments and trailing commas",
			input:   "```json\n{\n  \"thematic_codes\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}\n```",
			wantKey: "thematic_codes",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"url": "http://example.com/path"}`,
			wantKey: "url",
		},
		{
			name:    "unbalanced first object",
			input:   "{ broken\n{\"ok\": true}",
			wantKey: "ok",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON",
			input:   "I could not find any codes.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Empty(t, got)
				return
			}
			var parsed map[string]any
			require.NoError(t, json.Unmarshal([]byte(got), &parsed), "extracted: %s", got)
			assert.Contains(t, parsed, tt.wantKey)
		})
	}
}

func TestExtractJSON_StringContents(t *testing.T) {
	got := ExtractJSON(`{"thematic_codes": ["Use of {templates}", "a // b"]}`)

	var parsed struct {
		Codes []string `json:"thematic_codes"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, []string{"Use of {templates}", "a // b"}, parsed.Codes)
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain", `["a", "b"]`, []string{"a", "b"}},
		{"fenced", "```\n[\"a\",]\n```", []string{"a"}},
		{"prose", "Codes: [\"Access\", \"Funding\"].", []string{"Access", "Funding"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			require.NoError(t, json.Unmarshal([]byte(ExtractJSONArray(tt.input)), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, ExtractJSONArray("nothing here"))
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"a",  // note`, `"a",`},
		{`"url": "http://x.org"`, `"url": "http://x.org"`},
		{`"esc \" // inside": 1 // out`, `"esc \" // inside": 1`},
		{`no comment`, `no comment`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripLineComment(tt.input))
	}
}
