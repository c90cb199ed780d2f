package transcript

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Document is a parsed transcript.
type Document struct {
	// Name is the file's base name.
	Name string

	// MimeType is the type the document was parsed as.
	MimeType string

	// Title comes from frontmatter, an HTML title or a leading heading.
	Title string

	// Frontmatter holds the YAML header of text documents.
	Frontmatter map[string]any

	// Text is the transcript body as plain text or markdown.
	Text string
}

// Parser converts the content of one file into a Document.
type Parser interface {
	Parse(filename string, content []byte) (*Document, error)
}

// Format binds a parser to the file extensions and MIME types it reads.
type Format struct {
	Name       string
	Extensions []string
	MimeTypes  []string
	Parser     Parser
}

// Builtin formats.
var (
	FormatText = Format{
		Name:       "text",
		Extensions: []string{".md", ".markdown", ".txt"},
		MimeTypes:  []string{"text/markdown", "text/x-markdown", "text/plain"},
		Parser:     TextParser{},
	}
	FormatHTML = Format{
		Name:       "html",
		Extensions: []string{".html", ".htm"},
		MimeTypes:  []string{"text/html", "application/xhtml+xml"},
		Parser:     NewHTMLParser(),
	}
	FormatPDF = Format{
		Name:       "pdf",
		Extensions: []string{".pdf"},
		MimeTypes:  []string{"application/pdf"},
		Parser:     PDFParser{},
	}
)

// Registry picks a Format by file extension or MIME type. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Format
	byExt  map[string]string
	byMime map[string]string
}

// NewRegistry creates a registry with the text, HTML and PDF formats.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Format),
		byExt:  make(map[string]string),
		byMime: make(map[string]string),
	}
	for _, f := range []Format{FormatText, FormatHTML, FormatPDF} {
		r.Register(f)
	}
	return r
}

// Register adds f, replacing a format of the same name. Extensions and
// MIME types claimed by f are taken from earlier formats.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[f.Name] = f
	for _, ext := range f.Extensions {
		r.byExt[strings.ToLower(ext)] = f.Name
	}
	for _, mt := range f.MimeTypes {
		r.byMime[mt] = f.Name
	}
}

// ForFile returns the format for filename's extension.
func (r *Registry) ForFile(filename string) (Format, bool) {
	return r.lookup(r.byExt, strings.ToLower(filepath.Ext(filename)))
}

// ForMimeType returns the format reading mimeType.
func (r *Registry) ForMimeType(mimeType string) (Format, bool) {
	return r.lookup(r.byMime, mimeType)
}

func (r *Registry) lookup(index map[string]string, key string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := index[key]
	if !ok || key == "" {
		return Format{}, false
	}
	f, ok := r.byName[name]
	return f, ok
}

// Supports reports whether filename has a format.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.ForFile(filename)
	return ok
}

// Parse parses content with the format of filename.
func (r *Registry) Parse(filename string, content []byte) (*Document, error) {
	f, ok := r.ForFile(filename)
	if !ok {
		return nil, fmt.Errorf("unsupported transcript type %q", filepath.Ext(filename))
	}
	return f.Parser.Parse(filename, content)
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
