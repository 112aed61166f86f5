package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

const defaultAnswerTimeout = 60 * time.Second

// AnswerUseCase runs the full query path: retrieval fan-out, post-processing,
// source projection, generation and citation validation.
type AnswerUseCase struct {
	retriever ports.ContextRetriever
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	pipeline  *Pipeline
	timeout   time.Duration
}

func NewAnswerUseCase(
	retriever ports.ContextRetriever,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	pipeline *Pipeline,
	timeout time.Duration,
) *AnswerUseCase {
	if timeout <= 0 {
		timeout = defaultAnswerTimeout
	}
	return &AnswerUseCase{
		retriever: retriever,
		embedder:  embedder,
		generator: generator,
		pipeline:  pipeline,
		timeout:   timeout,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is empty"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	rc, err := uc.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	items := rc.AllItems()
	uc.attachEmbeddings(ctx, items)
	items = uc.pipeline.Apply(question, items)

	sources := projectSources(items)
	generation, err := uc.generator.GenerateAnswer(ctx, question, sources, items)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	report := ValidateCitations(generation.Text, sources)
	if !report.IsValid {
		slog.Warn("citation_validation_failed",
			"errors", len(report.Errors),
			"malformed", len(report.Malformed),
		)
	}

	return &domain.Answer{
		Text:             generation.Text,
		Sources:          sources,
		Citations:        report,
		Degraded:         rc.Degraded,
		DegradationLevel: rc.DegradationLevel,
		AffectedServices: rc.AffectedServices,
		Usage:            generation.Usage,
		SourceDurations:  rc.SourceDurations,
	}, nil
}

// attachEmbeddings fetches content embeddings in one batch so the
// similarity-based stages can compare items in vector space. A failed batch
// leaves all embeddings empty; those stages then fall back to token overlap.
func (uc *AnswerUseCase) attachEmbeddings(ctx context.Context, items []domain.ContextItem) {
	if len(items) == 0 {
		return
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Content
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(items) {
		slog.Warn("context_embedding_unavailable", "items", len(items), "error", err)
		return
	}
	for i := range items {
		items[i].Embedding = vectors[i]
	}
}

// projectSources assigns per-type 1-based indices in item order. The index
// is what citation markers in the generated text reference.
func projectSources(items []domain.ContextItem) []domain.Source {
	sources := make([]domain.Source, 0, len(items))
	docIndex, webIndex := 0, 0
	for _, item := range items {
		switch item.Kind {
		case domain.ItemKindWeb:
			webIndex++
			sources = append(sources, domain.Source{
				Type:  domain.SourceTypeWeb,
				Index: webIndex,
				Title: item.Title,
				URL:   item.URL,
			})
		default:
			docIndex++
			sources = append(sources, domain.Source{
				Type:       domain.SourceTypeDocument,
				Index:      docIndex,
				Title:      item.Filename,
				DocumentID: item.DocumentID,
				ChunkIndex: item.ChunkIndex,
			})
		}
	}
	return sources
}
