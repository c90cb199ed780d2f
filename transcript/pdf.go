package transcript

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer of PDF transcripts.
type PDFParser struct{}

// Parse extracts the plain text of every page. Pages that fail to decode
// are skipped; a PDF without any text layer is an error.
func (PDFParser) Parse(filename string, content []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return nil, fmt.Errorf("no text in PDF with %d pages", numPages)
	}

	return &Document{
		Name:     filepath.Base(filename),
		MimeType: "application/pdf",
		Text:     sb.String(),
	}, nil
}
