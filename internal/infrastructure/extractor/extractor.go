package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/htmldoc"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/markdown"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor/wordprocessing"
)

// SupportedExtensions lists the file extensions ingestion accepts.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".log":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".xlsx":     true,
}

// Composite routes extraction by file extension, with MIME type as a tie
// breaker for extensionless uploads. Unknown formats go through the
// plaintext path, which rejects binary data.
type Composite struct {
	plaintext   ports.TextExtractor
	markdown    ports.TextExtractor
	html        ports.TextExtractor
	pdf         ports.TextExtractor
	docx        ports.TextExtractor
	spreadsheet ports.TextExtractor
}

func NewComposite(storage ports.ObjectStorage) *Composite {
	return &Composite{
		plaintext:   plaintext.NewExtractor(storage),
		markdown:    markdown.NewExtractor(storage),
		html:        htmldoc.NewExtractor(storage),
		pdf:         pdf.NewExtractor(storage),
		docx:        wordprocessing.NewExtractor(storage),
		spreadsheet: spreadsheet.NewExtractor(storage),
	}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	return c.forDocument(doc).Extract(ctx, doc)
}

func (c *Composite) forDocument(doc *domain.Document) ports.TextExtractor {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".md", ".markdown":
		return c.markdown
	case ".html", ".htm":
		return c.html
	case ".pdf":
		return c.pdf
	case ".docx":
		return c.docx
	case ".xlsx":
		return c.spreadsheet
	case ".txt", ".log":
		return c.plaintext
	}

	switch normalizeMIME(doc.MimeType) {
	case "text/markdown":
		return c.markdown
	case "text/html":
		return c.html
	case "application/pdf":
		return c.pdf
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return c.docx
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return c.spreadsheet
	}
	return c.plaintext
}

// IsSupported checks a filename against the accepted extension list.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
