package chunking

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

// vectorEmbedder maps each text to a fixed vector.
type vectorEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *vectorEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func testSentences(texts ...string) []domain.Sentence {
	out := make([]domain.Sentence, len(texts))
	offset := 0
	for i, text := range texts {
		out[i] = domain.Sentence{
			Text:       text,
			Index:      i,
			StartChar:  offset,
			EndChar:    offset + len(text),
			TokenCount: len(text) / 4,
		}
		offset += len(text) + 1
	}
	return out
}

func TestGroupMergesSimilarSentences(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"cats purr.":     {1, 0, 0},
		"felines purr.":  {0.99, 0.1, 0},
		"stocks fell.":   {0, 1, 0},
		"markets slid.":  {0.1, 0.99, 0},
		"the moon spins": {0, 0, 1},
	}}
	grouper := NewSemanticGrouper(embedder, 0.9, 32)

	sentences := testSentences("cats purr.", "stocks fell.", "felines purr.", "markets slid.", "the moon spins")
	groups, err := grouper.Group(context.Background(), sentences)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}

	want := [][]int{{0, 2}, {1, 3}, {4}}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d: %+v", len(want), len(groups), groups)
	}
	for i, g := range groups {
		if !reflect.DeepEqual(g.SentenceIndices, want[i]) {
			t.Fatalf("group %d = %v, want %v", i, g.SentenceIndices, want[i])
		}
	}
}

func TestGroupPartitionsAllSentencesExactlyOnce(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{}}
	grouper := NewSemanticGrouper(embedder, 0.5, 2)

	sentences := testSentences("a.", "b.", "c.", "d.", "e.")
	groups, err := grouper.Group(context.Background(), sentences)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}

	seen := make(map[int]int)
	for _, g := range groups {
		for _, idx := range g.SentenceIndices {
			seen[idx]++
		}
	}
	if len(seen) != len(sentences) {
		t.Fatalf("expected every sentence grouped, got %d of %d", len(seen), len(sentences))
	}
	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("sentence %d appears %d times", idx, count)
		}
	}
}

func TestGroupDeterministicAcrossRuns(t *testing.T) {
	vectors := map[string][]float32{
		"one.":   {1, 0},
		"two.":   {0.9, 0.44},
		"three.": {0, 1},
		"four.":  {0.44, 0.9},
	}
	first, err := NewSemanticGrouper(&vectorEmbedder{vectors: vectors}, 0.8, 1).
		Group(context.Background(), testSentences("one.", "two.", "three.", "four."))
	if err != nil {
		t.Fatalf("first Group() error = %v", err)
	}
	second, err := NewSemanticGrouper(&vectorEmbedder{vectors: vectors}, 0.8, 3).
		Group(context.Background(), testSentences("one.", "two.", "three.", "four."))
	if err != nil {
		t.Fatalf("second Group() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grouping not deterministic: %+v vs %+v", first, second)
	}
}

func TestGroupSingleSentenceShortCircuits(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{}}
	groups, err := NewSemanticGrouper(embedder, 0.8, 32).
		Group(context.Background(), testSentences("only one."))
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 1 || len(groups[0].SentenceIndices) != 1 {
		t.Fatalf("expected single trivial group, got %+v", groups)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedding calls, got %d", embedder.calls)
	}
}

func TestGroupEmbeddingFailureIsAllOrNothing(t *testing.T) {
	embedder := &vectorEmbedder{err: errors.New("provider down")}
	_, err := NewSemanticGrouper(embedder, 0.8, 2).
		Group(context.Background(), testSentences("a.", "b.", "c."))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
}
