package markdown

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

func TestExtractKeepsHeadingLines(t *testing.T) {
	source := "# Report\n\nFirst paragraph here.\n\n## Details\n\nSecond paragraph here.\n"
	storage := memStorage{"k": []byte(source)}
	extractor := NewExtractor(storage)

	text, err := extractor.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "a.md"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	blocks := strings.Split(text, "\n\n")
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d: %q", len(blocks), text)
	}
	if blocks[0] != "# Report" || blocks[2] != "## Details" {
		t.Fatalf("heading lines not preserved: %q", text)
	}
	if blocks[1] != "First paragraph here." {
		t.Fatalf("unexpected paragraph: %q", blocks[1])
	}
}

func TestExtractDropsFenceMarkers(t *testing.T) {
	source := "Intro text.\n\n```go\nfunc main() {}\n```\n"
	storage := memStorage{"k": []byte(source)}
	extractor := NewExtractor(storage)

	text, err := extractor.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "a.md"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Contains(text, "```") {
		t.Fatalf("fence markers leaked: %q", text)
	}
	if !strings.Contains(text, "func main() {}") {
		t.Fatalf("code content dropped: %q", text)
	}
}
