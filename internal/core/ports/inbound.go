package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, topicID string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing. ProcessByID reports the number of chunks produced.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) (int, error)
}

// ContextRetriever is the inbound contract of the retrieval orchestrator.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalContext, error)
}

// AnswerService runs the full query path: retrieve, post-process, generate,
// validate citations.
type AnswerService interface {
	Answer(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.Answer, error)
}
