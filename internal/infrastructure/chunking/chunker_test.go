package chunking

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

const aiDocument = "Artificial intelligence is a field of computer science. " +
	"It focuses on creating intelligent machines. " +
	"Machine learning is a subset of AI. " +
	"Deep learning uses neural networks."

func TestChunkShortDocumentSkipsEmbedding(t *testing.T) {
	emb := &vectorEmbedder{}
	chunker := NewSemanticChunker(emb, wordCounter{}, Options{MaxChunkSize: 800})

	chunks, err := chunker.Chunk(context.Background(), aiDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
	if emb.calls != 0 {
		t.Fatalf("short document must not call embedder, got %d calls", emb.calls)
	}

	chunk := chunks[0]
	if chunk.ChunkIndex != 0 {
		t.Fatalf("unexpected chunk index %d", chunk.ChunkIndex)
	}
	if !reflect.DeepEqual(chunk.SentenceIndices, []int{0, 1, 2, 3}) {
		t.Fatalf("expected all four sentences, got %v", chunk.SentenceIndices)
	}
	if !strings.HasSuffix(chunk.Content, "neural networks.") {
		t.Fatalf("unexpected content tail: %q", chunk.Content)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight. ", 40)
	emb := &vectorEmbedder{}
	chunker := NewSemanticChunker(emb, wordCounter{}, Options{
		MaxChunkSize: 20,
		MinChunkSize: 4,
		OverlapSize:  8,
	})

	first, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("chunk boundaries changed between identical runs")
	}
	if len(first) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(first))
	}
	for i, chunk := range first {
		if i < len(first)-1 && chunk.TokenCount > 20 {
			t.Fatalf("chunk %d exceeds budget: %d", i, chunk.TokenCount)
		}
	}
}

func TestChunkFallsBackToSentenceWindows(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight. ", 10)
	emb := &vectorEmbedder{err: errors.New("provider down")}
	chunker := NewSemanticChunker(emb, wordCounter{}, Options{
		MaxChunkSize:       20,
		MinChunkSize:       4,
		FallbackToSentence: true,
	})

	chunks, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("fallback should swallow embedding failure, got %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks from sentence-window fallback")
	}
	seen := 0
	for _, chunk := range chunks {
		prev := -1
		for _, idx := range chunk.SentenceIndices {
			if prev >= 0 && idx != prev+1 {
				t.Fatalf("fallback windows must be contiguous, got %v", chunk.SentenceIndices)
			}
			prev = idx
			seen++
		}
	}
	if seen < 10 {
		t.Fatalf("fallback lost sentences: covered %d", seen)
	}
}

func TestChunkPropagatesEmbeddingFailureWithoutFallback(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight. ", 10)
	emb := &vectorEmbedder{err: errors.New("provider down")}
	chunker := NewSemanticChunker(emb, wordCounter{}, Options{
		MaxChunkSize:       20,
		MinChunkSize:       4,
		FallbackToSentence: false,
	})

	if _, err := chunker.Chunk(context.Background(), text); !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected embedding failure, got %v", err)
	}
}

func TestChunkEmptyText(t *testing.T) {
	chunker := NewSemanticChunker(&vectorEmbedder{}, wordCounter{}, DefaultOptions())

	chunks, err := chunker.Chunk(context.Background(), "   \n\n  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks for blank text, got %v", chunks)
	}
}
