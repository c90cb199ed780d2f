package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterFence = "---"

// TextParser reads plain text and markdown transcripts. A leading YAML
// block fenced by "---" lines becomes the document's frontmatter.
type TextParser struct{}

// Parse never fails: a frontmatter block that does not close or does not
// decode stays in the body.
func (TextParser) Parse(filename string, content []byte) (*Document, error) {
	doc := &Document{
		Name:     filepath.Base(filename),
		MimeType: "text/markdown",
		Text:     strings.TrimPrefix(string(content), "\ufeff"),
	}
	if strings.EqualFold(filepath.Ext(filename), ".txt") {
		doc.MimeType = "text/plain"
	}

	if fm, body, err := splitFrontmatter(doc.Text); err == nil {
		doc.Frontmatter, doc.Text = fm, body
	}

	doc.Title, _ = doc.Frontmatter["title"].(string)
	if doc.Title == "" {
		doc.Title = markdownTitle(doc.Text)
	}
	doc.Text = strings.TrimSpace(doc.Text)
	return doc, nil
}

var errNoFrontmatter = errors.New("no frontmatter")

// splitFrontmatter separates a leading fenced YAML block from the body.
func splitFrontmatter(content string) (map[string]any, string, error) {
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), len(content)+1)

	if !sc.Scan() || strings.TrimRight(sc.Text(), "\r") != frontmatterFence {
		return nil, content, errNoFrontmatter
	}
	offset := len(sc.Text()) + 1

	var header strings.Builder
	for sc.Scan() {
		line := sc.Text()
		offset += len(line) + 1
		if strings.TrimRight(line, "\r") != frontmatterFence {
			header.WriteString(line)
			header.WriteByte('\n')
			continue
		}

		var fm map[string]any
		if err := yaml.Unmarshal([]byte(header.String()), &fm); err != nil {
			return nil, content, fmt.Errorf("frontmatter: %w", err)
		}
		body := ""
		if offset < len(content) {
			body = strings.TrimLeft(content[offset:], "\r\n")
		}
		return fm, body, nil
	}
	return nil, content, errors.New("frontmatter is not closed")
}

// markdownTitle returns the text of the first level-one heading.
func markdownTitle(content string) string {
	for line := range strings.Lines(content) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
