package llm

import (
	"regexp"
	"strings"
)

var (
	// fencePattern matches the body of a markdown code fence.
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON extracts the first JSON object from an LLM response string.
// It prefers fenced code blocks, tolerates prose around the object, and
// removes JavaScript-style comments and trailing commas. It returns "" when
// no object is found.
func ExtractJSON(content string) string {
	return extract(content, '{', '}')
}

// ExtractJSONArray extracts the first JSON array from an LLM response string.
func ExtractJSONArray(content string) string {
	return extract(content, '[', ']')
}

func extract(content string, open, close byte) string {
	for _, m := range fencePattern.FindAllStringSubmatch(content, -1) {
		if raw := balanced(m[1], open, close); raw != "" {
			return cleanJSON(raw)
		}
	}
	if raw := balanced(content, open, close); raw != "" {
		return cleanJSON(raw)
	}
	return ""
}

// balanced returns the first open...close span of s whose delimiters balance
// outside string literals, or "" if there is none.
func balanced(s string, open, close byte) string {
	for start := strings.IndexByte(s, open); start >= 0; {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			ch := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && ch == '\\':
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == open:
				depth++
			case ch == close:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}

		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			return ""
		}
		start += next + 1
	}
	return ""
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
//
//	"a",  // note            → "a",
//	"url": "http://x.org"    → unchanged
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
