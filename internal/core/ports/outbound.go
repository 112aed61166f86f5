package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ChunkRepository persists derived chunk metadata. Re-ingestion replaces a
// document's chunks wholesale.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// IngestHandler processes one document-ingested event. enqueuedAt is
// the publish time when the event carried one, zero otherwise.
type IngestHandler func(ctx context.Context, documentID string, enqueuedAt time.Time) error

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler IngestHandler) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for text spans and queries. Failure is a distinct,
// catchable condition; the grouper treats any failed call as fatal for the
// whole grouping operation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TokenCounter counts tokens for a given encoding or model name. Unknown
// names fall back to a default encoding.
type TokenCounter interface {
	CountTokens(text, encodingOrModel string) int
}

// SemanticChunker turns raw document text into token-budgeted chunks.
type SemanticChunker interface {
	Chunk(ctx context.Context, text string) ([]domain.Chunk, error)
}

// VectorIndex indexes chunks and performs scored nearest-neighbor search.
// Items below the filter's MinScore are excluded by the index itself, not
// post-filtered.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ContextItem, error)
	SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.ContextItem, error)
}

// WebSearcher queries the external web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts domain.WebSearchOptions) (*domain.WebSearchResult, error)
}

// TopicStore resolves topic scoping for retrieval and records
// document-topic links at ingestion time.
type TopicStore interface {
	LinkDocument(ctx context.Context, documentID, topicID string) error
	ResolveDocuments(ctx context.Context, topicID string) ([]string, error)
}

// AnswerGenerator produces the final answer text from a question and the
// assembled context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, sources []domain.Source, items []domain.ContextItem) (domain.Generation, error)
}
