package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Extractor flattens HTML into plain text. Headings come out as ATX lines
// and block elements as blank-line separated paragraphs; script, style and
// chrome elements are skipped.
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

	root, err := html.Parse(reader)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var out strings.Builder
	body := findBody(root)
	if body == nil {
		body = root
	}
	walk(&out, body)
	return strings.TrimSpace(out.String()), nil
}

func walk(out *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			writeBlock(out, strings.Repeat("#", level)+" "+textContent(n))
			return
		}
		switch n.Data {
		case "script", "style", "nav", "footer", "header":
			return
		case "p", "li", "td", "blockquote", "pre":
			if t := textContent(n); t != "" {
				writeBlock(out, t)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(out, c)
	}
}

func writeBlock(out *strings.Builder, block string) {
	if out.Len() > 0 {
		out.WriteString("\n\n")
	}
	out.WriteString(block)
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
