package chunking

import (
	"context"
	"log/slog"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

type Options struct {
	MaxChunkSize        int
	MinChunkSize        int
	OverlapSize         int
	SimilarityThreshold float64
	FallbackToSentence  bool
	Encoding            string
	EmbedBatchSize      int
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize:        800,
		MinChunkSize:        100,
		OverlapSize:         80,
		SimilarityThreshold: 0.82,
		FallbackToSentence:  true,
		Encoding:            "cl100k_base",
		EmbedBatchSize:      32,
	}
}

func (o Options) normalize() Options {
	out := o
	def := DefaultOptions()

	if out.MaxChunkSize <= 0 {
		out.MaxChunkSize = def.MaxChunkSize
	}
	if out.MinChunkSize <= 0 || out.MinChunkSize >= out.MaxChunkSize {
		out.MinChunkSize = out.MaxChunkSize / 8
	}
	if out.OverlapSize < 0 {
		out.OverlapSize = 0
	}
	if out.OverlapSize >= out.MaxChunkSize {
		out.OverlapSize = out.MaxChunkSize / 4
	}
	if out.SimilarityThreshold <= 0 || out.SimilarityThreshold > 1 {
		out.SimilarityThreshold = def.SimilarityThreshold
	}
	if out.Encoding == "" {
		out.Encoding = def.Encoding
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = def.EmbedBatchSize
	}
	return out
}

// SemanticChunker runs structure detection, semantic grouping and chunk
// assembly as one pipeline. Re-running it on identical text with identical
// options yields identical chunk boundaries.
type SemanticChunker struct {
	opts      Options
	detector  *StructureDetector
	grouper   *SemanticGrouper
	assembler *Assembler
}

func NewSemanticChunker(embedder ports.Embedder, counter ports.TokenCounter, opts Options) *SemanticChunker {
	opts = opts.normalize()
	return &SemanticChunker{
		opts:      opts,
		detector:  NewStructureDetector(counter, opts.Encoding),
		grouper:   NewSemanticGrouper(embedder, opts.SimilarityThreshold, opts.EmbedBatchSize),
		assembler: NewAssembler(counter, opts.Encoding, opts.MaxChunkSize, opts.MinChunkSize, opts.OverlapSize),
	}
}

func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]domain.Chunk, error) {
	st := c.detector.Detect(text)
	if len(st.Sentences) == 0 {
		return nil, nil
	}

	groups, err := c.group(ctx, st)
	if err != nil {
		return nil, err
	}
	return c.assembler.Assemble(st, groups), nil
}

func (c *SemanticChunker) group(ctx context.Context, st Structure) ([]domain.SemanticGroup, error) {
	all := make([]int, len(st.Sentences))
	total := 0
	for i, s := range st.Sentences {
		all[i] = i
		total += s.TokenCount
	}

	// Documents under the chunk budget become a single chunk without any
	// embedding calls. This is the common case for short documents and
	// avoids provider cost, not just latency.
	if total < c.opts.MaxChunkSize || len(st.Sentences) == 1 {
		return []domain.SemanticGroup{{SentenceIndices: all}}, nil
	}

	groups, err := c.grouper.Group(ctx, st.Sentences)
	if err == nil {
		return groups, nil
	}
	if !c.opts.FallbackToSentence {
		return nil, err
	}
	slog.Warn("semantic_grouping_fallback",
		"error", err,
		"sentences", len(st.Sentences),
	)
	return sentenceWindows(st.Sentences, c.opts.MaxChunkSize), nil
}

// sentenceWindows is the coarse non-semantic strategy: contiguous runs of
// sentences packed up to the chunk budget.
func sentenceWindows(sentences []domain.Sentence, maxChunkSize int) []domain.SemanticGroup {
	var out []domain.SemanticGroup
	var window []int
	tokens := 0
	for i, s := range sentences {
		if len(window) > 0 && tokens+s.TokenCount > maxChunkSize {
			out = append(out, domain.SemanticGroup{SentenceIndices: window})
			window = nil
			tokens = 0
		}
		window = append(window, i)
		tokens += s.TokenCount
	}
	if len(window) > 0 {
		out = append(out, domain.SemanticGroup{SentenceIndices: window})
	}
	return out
}
