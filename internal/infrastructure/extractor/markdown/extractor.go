package markdown

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Extractor normalizes markdown into blank-line separated blocks while
// keeping ATX heading lines, so downstream structure detection still sees
// section boundaries. Fence markers are dropped; inline markup inside
// paragraphs passes through as-is.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	src, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	md := goldmark.New()
	root := md.Parser().Parse(gtext.NewReader(src))

	var out strings.Builder
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			writeBlock(&out, strings.Repeat("#", node.Level)+" "+string(node.Text(src)))
		default:
			if t := blockText(n, src); t != "" {
				writeBlock(&out, t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func writeBlock(out *strings.Builder, block string) {
	if out.Len() > 0 {
		out.WriteString("\n\n")
	}
	out.WriteString(block)
}

func blockText(n ast.Node, src []byte) string {
	var buf strings.Builder
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			if inner := blockText(c, src); inner != "" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
				buf.WriteString(inner)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
