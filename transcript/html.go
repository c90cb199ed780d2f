package transcript

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minReadableChars is the shortest readability article accepted before
// falling back to the page's main element.
const minReadableChars = 40

// maxBlankLines is the longest run of blank lines kept in the markdown.
const maxBlankLines = 2

// chrome elements are dropped when a page has no main element.
var chrome = map[atom.Atom]bool{
	atom.Nav: true, atom.Header: true, atom.Footer: true, atom.Aside: true,
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Iframe: true,
	atom.Form: true, atom.Button: true,
}

// HTMLParser converts exported meeting notes and other HTML transcripts to
// markdown.
type HTMLParser struct {
	converter *md.Converter
}

// NewHTMLParser creates an HTML parser with GitHub-flavoured markdown
// output.
func NewHTMLParser() *HTMLParser {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &HTMLParser{converter: c}
}

// Parse converts the article of the page to markdown. The article is what
// readability finds, else the main element, else the body without
// navigation and scripts.
func (p *HTMLParser) Parse(filename string, content []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	article := readableArticle(filename, content)
	if article == nil {
		article = mainContent(root)
	}

	var rendered bytes.Buffer
	if err := html.Render(&rendered, article); err != nil {
		return nil, fmt.Errorf("render HTML: %w", err)
	}
	markdown, err := p.converter.ConvertString(rendered.String())
	if err != nil {
		return nil, fmt.Errorf("convert HTML: %w", err)
	}
	markdown = cleanMarkdown(markdown)

	title := htmlTitle(root)
	if title == "" {
		title = markdownTitle(markdown)
	}
	return &Document{
		Name:     filepath.Base(filename),
		MimeType: "text/html",
		Title:    title,
		Text:     markdown,
	}, nil
}

// readableArticle returns the readability article node, or nil when it
// holds too little text.
func readableArticle(filename string, content []byte) *html.Node {
	pageURL := &url.URL{Scheme: "file", Path: "/" + filepath.ToSlash(filepath.Base(filename))}
	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err != nil || article.Node == nil {
		return nil
	}
	if len(strings.TrimSpace(textContent(article.Node))) < minReadableChars {
		return nil
	}
	return article.Node
}

// mainContent returns the first main, article or role=main element. When
// there is none it strips chrome from the body and returns the body.
func mainContent(root *html.Node) *html.Node {
	if n := find(root, func(n *html.Node) bool {
		return n.DataAtom == atom.Main || n.DataAtom == atom.Article || attr(n, "role") == "main"
	}); n != nil {
		return n
	}

	var drop []*html.Node
	walk(root, func(n *html.Node) bool {
		if chrome[n.DataAtom] {
			drop = append(drop, n)
			return false
		}
		return true
	})
	for _, n := range drop {
		n.Parent.RemoveChild(n)
	}

	if body := find(root, func(n *html.Node) bool { return n.DataAtom == atom.Body }); body != nil {
		return body
	}
	return root
}

func htmlTitle(root *html.Node) string {
	t := find(root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if t == nil {
		return ""
	}
	return strings.TrimSpace(textContent(t))
}

// walk visits the element nodes below n in document order. Returning
// false from visit skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !visit(c) {
			continue
		}
		walk(c, visit)
	}
}

// find returns the first element below n matching match.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found == nil && match(c) {
			found = c
		}
		return found == nil
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// cleanMarkdown trims trailing whitespace from every line and shortens
// blank runs to maxBlankLines.
func cleanMarkdown(content string) string {
	var out []string
	blank := 0
	for line := range strings.Lines(content) {
		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			blank++
			if blank > maxBlankLines {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
