package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/knowledge-chat-rag/internal/config"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/usecase"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/tokenizer"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/websearch/tavily"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	AnswerUC  ports.AnswerService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunkRepo := postgres.NewChunkRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	topics, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("init topic store: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		EmbedRequestsPerSecond: cfg.OllamaEmbedRPS,
		ResilienceExecutor:     executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	var webSearch ports.WebSearcher
	if cfg.TavilyAPIKey != "" {
		webSearch = tavily.New(cfg.TavilyBaseURL, cfg.TavilyAPIKey)
	}

	counter := tokenizer.New(cfg.TokenEncoding)
	chunker := chunking.NewSemanticChunker(embedder, counter, chunking.Options{
		MaxChunkSize:        cfg.MaxChunkSize,
		MinChunkSize:        cfg.MinChunkSize,
		OverlapSize:         cfg.ChunkOverlap,
		SimilarityThreshold: cfg.SimilarityThreshold,
		FallbackToSentence:  cfg.FallbackToSentence,
		Encoding:            cfg.TokenEncoding,
	})
	textExtractor := extractor.NewComposite(storage)

	pipeline := usecase.NewPipeline(pipelineConfig(cfg.RAG), counter)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, topics)
	processUC := usecase.NewProcessDocumentUseCase(repo, chunkRepo, textExtractor, chunker, embedder, vectorDB)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, vectorDB, webSearch, topics)
	answerUC := usecase.NewAnswerUseCase(
		retrieveUC,
		embedder,
		generator,
		pipeline,
		time.Duration(cfg.AnswerTimeoutSeconds)*time.Second,
	)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AnswerUC:  answerUC,

		closeFn: func() {
			queue.Close()
			_ = topics.Close(context.Background())
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// RetrievalDefaults maps the configured RAG profile onto the retrieval
// options used when a request leaves a knob unset.
func RetrievalDefaults(cfg config.Config) domain.RetrievalOptions {
	profile := cfg.RAG.Retrieval
	return domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      profile.EnableWebSearch && cfg.TavilyAPIKey != "",
		EnableKeywordSearch:  profile.EnableKeywordSearch,

		MaxDocumentChunks: profile.MaxDocumentChunks,
		MaxWebResults:     profile.MaxWebResults,
		MinScore:          profile.MinScore,

		EnableQueryExpansion: profile.QueryExpansion.Enabled,
		ExpansionStrategy:    profile.QueryExpansion.Strategy,
		MaxExpansions:        profile.QueryExpansion.MaxExpansions,
	}
}

func pipelineConfig(profile config.RAGProfile) usecase.PipelineConfig {
	p := profile.Pipeline
	return usecase.PipelineConfig{
		Dedup: usecase.DedupConfig{
			Enabled:   p.Dedup.Enabled,
			Threshold: p.Dedup.Threshold,
		},
		Diversity: usecase.DiversityConfig{
			Enabled:    p.Diversity.Enabled,
			Lambda:     p.Diversity.Lambda,
			MaxResults: p.Diversity.MaxResults,
		},
		Rerank: usecase.RerankConfig{
			Enabled:    p.Rerank.Enabled,
			Strategy:   p.Rerank.Strategy,
			TopK:       p.Rerank.TopK,
			MaxResults: p.Rerank.MaxResults,
		},
		Adaptive: usecase.AdaptiveConfig{
			Enabled:   p.Adaptive.Enabled,
			MinChunks: p.Adaptive.MinChunks,
			MaxChunks: p.Adaptive.MaxChunks,
		},
		Budget: usecase.BudgetConfig{
			Enabled:   p.Budget.Enabled,
			Model:     p.Budget.Model,
			MaxTokens: p.Budget.MaxTokens,
		},
	}
}
