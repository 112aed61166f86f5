package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

type memStorage map[string][]byte

func (m memStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func (m memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

const page = `<html><head><title>Ignored</title><script>alert("x")</script></head>
<body>
<header>site chrome</header>
<h1>Overview</h1>
<p>Opening paragraph.</p>
<h2>Usage</h2>
<p>Usage paragraph with <b>bold</b> text.</p>
<ul><li>first item</li><li>second item</li></ul>
<footer>copyright</footer>
</body></html>`

func TestExtractFlattensHeadingsAndBlocks(t *testing.T) {
	storage := memStorage{"k": []byte(page)}
	extractor := NewExtractor(storage)

	text, err := extractor.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "a.html"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, want := range []string{"# Overview", "## Usage", "Opening paragraph.", "Usage paragraph with bold text.", "first item"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
	for _, banned := range []string{"alert", "site chrome", "copyright"} {
		if strings.Contains(text, banned) {
			t.Fatalf("non-content %q leaked into:\n%s", banned, text)
		}
	}
}
