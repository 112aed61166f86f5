package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

type embedderFake struct {
	queries []string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type vectorFake struct {
	filter       domain.SearchFilter
	limit        int
	items        []domain.ContextItem
	err          error
	lexicalItems []domain.ContextItem
	lexicalErr   error
	lexicalCalls int
}

func (f *vectorFake) IndexChunks(context.Context, *domain.Document, []domain.Chunk, [][]float32) error {
	return nil
}

func (f *vectorFake) Search(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.ContextItem, error) {
	f.limit = limit
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *vectorFake) SearchLexical(_ context.Context, _ string, _ int, filter domain.SearchFilter) ([]domain.ContextItem, error) {
	f.lexicalCalls++
	f.filter = filter
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return f.lexicalItems, nil
}

type webFake struct {
	opts   domain.WebSearchOptions
	result *domain.WebSearchResult
	err    error
}

func (f *webFake) Search(_ context.Context, _ string, opts domain.WebSearchOptions) (*domain.WebSearchResult, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type topicFake struct {
	linked map[string]string
	docs   []string
	err    error
}

func (f *topicFake) LinkDocument(_ context.Context, documentID, topicID string) error {
	if f.linked == nil {
		f.linked = map[string]string{}
	}
	f.linked[documentID] = topicID
	return f.err
}

func (f *topicFake) ResolveDocuments(context.Context, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func docItem(id string, index int, score float64) domain.ContextItem {
	return domain.ContextItem{
		Kind:       domain.ItemKindDocument,
		Score:      score,
		Content:    "content " + id,
		DocumentID: id,
		ChunkIndex: index,
	}
}

func float64Ptr(v float64) *float64 { return &v }

func TestRetrieveWebFailureDegradesContext(t *testing.T) {
	vector := &vectorFake{items: []domain.ContextItem{docItem("doc-1", 0, 0.9)}}
	web := &webFake{err: errors.New("provider 500")}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, web, nil)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !rc.Degraded || rc.DegradationLevel != domain.DegradationPartial {
		t.Fatalf("expected partial degradation, got degraded=%v level=%s", rc.Degraded, rc.DegradationLevel)
	}
	if !reflect.DeepEqual(rc.AffectedServices, []string{serviceWeb}) {
		t.Fatalf("unexpected affected services %v", rc.AffectedServices)
	}
	if len(rc.DocumentItems) == 0 || len(rc.WebItems) != 0 {
		t.Fatalf("expected document items only, got %d/%d", len(rc.DocumentItems), len(rc.WebItems))
	}
}

func TestRetrieveAllSourcesFail(t *testing.T) {
	vector := &vectorFake{err: errors.New("index down")}
	web := &webFake{err: errors.New("provider down")}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, web, nil)

	_, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
	})
	if !errors.Is(err, domain.ErrRetrievalFailure) {
		t.Fatalf("expected total retrieval failure, got %v", err)
	}
}

func TestRetrieveKeywordFallback(t *testing.T) {
	vector := &vectorFake{
		err:          errors.New("index down"),
		lexicalItems: []domain.ContextItem{docItem("doc-9", 2, 0.4)},
	}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, &webFake{err: errors.New("down")}, nil)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
		EnableKeywordSearch:  true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if rc.DegradationLevel != domain.DegradationFallback {
		t.Fatalf("expected fallback level, got %s", rc.DegradationLevel)
	}
	if vector.lexicalCalls != 1 || len(rc.DocumentItems) != 1 {
		t.Fatalf("expected one lexical call and one item, got %d/%d", vector.lexicalCalls, len(rc.DocumentItems))
	}
}

func TestRetrieveMinScoreFiltersWebResults(t *testing.T) {
	web := &webFake{result: &domain.WebSearchResult{Results: []domain.WebResult{
		{URL: "https://a.example", Content: "a", Score: float64Ptr(0.9)},
		{URL: "https://b.example", Content: "b", Score: float64Ptr(0.5)},
	}}}
	uc := NewRetrieveUseCase(&embedderFake{}, &vectorFake{}, web, nil)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableWebSearch: true,
		MinScore:        0.7,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(rc.WebItems) != 1 || rc.WebItems[0].URL != "https://a.example" {
		t.Fatalf("expected only the 0.9 item to survive, got %+v", rc.WebItems)
	}
}

func TestRetrieveMissingWebScoreGetsNeutralConstant(t *testing.T) {
	web := &webFake{result: &domain.WebSearchResult{Results: []domain.WebResult{
		{URL: "https://a.example", Content: "a"},
	}}}
	uc := NewRetrieveUseCase(&embedderFake{}, &vectorFake{}, web, nil)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{EnableWebSearch: true})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(rc.WebItems) != 1 || rc.WebItems[0].Score != neutralWebScore {
		t.Fatalf("expected neutral score %.1f, got %+v", neutralWebScore, rc.WebItems)
	}
}

func TestRetrieveResolvesTopicScope(t *testing.T) {
	vector := &vectorFake{}
	topics := &topicFake{docs: []string{"doc-1", "doc-2"}}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, &webFake{}, topics)

	_, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		TopicID:              "topic-7",
		DocumentIDs:          []string{"doc-2", "doc-3"},
		MinScore:             0.6,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !reflect.DeepEqual(vector.filter.DocumentIDs, []string{"doc-2", "doc-3", "doc-1"}) {
		t.Fatalf("unexpected merged scope %v", vector.filter.DocumentIDs)
	}
	if vector.filter.MinScore != 0.6 {
		t.Fatalf("min score must reach the source query, got %v", vector.filter.MinScore)
	}
}

func TestRetrieveTopicStoreFailureDegradesDocumentsOnly(t *testing.T) {
	vector := &vectorFake{items: []domain.ContextItem{docItem("doc-1", 0, 0.9)}}
	topics := &topicFake{err: errors.New("neo4j down")}
	web := &webFake{result: &domain.WebSearchResult{Results: []domain.WebResult{
		{URL: "https://a.example", Content: "a", Score: float64Ptr(0.8)},
	}}}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, web, topics)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
		TopicID:              "topic-7",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !rc.Degraded || rc.DegradationLevel != domain.DegradationPartial {
		t.Fatalf("expected partial degradation, got degraded=%v level=%s", rc.Degraded, rc.DegradationLevel)
	}
	if !reflect.DeepEqual(rc.AffectedServices, []string{serviceDocuments}) {
		t.Fatalf("unexpected affected services %v", rc.AffectedServices)
	}
	if len(rc.DocumentItems) != 0 || len(rc.WebItems) != 1 {
		t.Fatalf("expected web items only, got %d/%d", len(rc.DocumentItems), len(rc.WebItems))
	}
}

func TestRetrieveTopicStoreFailureSkipsUnscopedFallback(t *testing.T) {
	vector := &vectorFake{lexicalItems: []domain.ContextItem{docItem("doc-9", 2, 0.4)}}
	topics := &topicFake{err: errors.New("neo4j down")}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, &webFake{err: errors.New("down")}, topics)

	_, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
		EnableKeywordSearch:  true,
		TopicID:              "topic-7",
	})
	if !errors.Is(err, domain.ErrRetrievalFailure) {
		t.Fatalf("expected total retrieval failure, got %v", err)
	}
	// The fallback must never run without the topic scope it cannot resolve.
	if vector.lexicalCalls != 0 {
		t.Fatalf("expected no lexical call, got %d", vector.lexicalCalls)
	}
}

func TestRetrieveRecordsSourceDurations(t *testing.T) {
	vector := &vectorFake{items: []domain.ContextItem{docItem("doc-1", 0, 0.9)}}
	web := &webFake{err: errors.New("provider down")}
	uc := NewRetrieveUseCase(&embedderFake{}, vector, web, nil)

	rc, err := uc.Retrieve(context.Background(), "question", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableWebSearch:      true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	for _, service := range []string{serviceDocuments, serviceWeb} {
		if _, ok := rc.SourceDurations[service]; !ok {
			t.Fatalf("expected a duration for %s, got %v", service, rc.SourceDurations)
		}
	}
}

func TestRetrieveQueryExpansionFusesVariants(t *testing.T) {
	embedder := &embedderFake{}
	vector := &vectorFake{items: []domain.ContextItem{docItem("doc-1", 0, 0.9)}}
	uc := NewRetrieveUseCase(embedder, vector, &webFake{}, nil)

	rc, err := uc.Retrieve(context.Background(), "What is the difference between llamas and alpacas?", domain.RetrievalOptions{
		EnableDocumentSearch: true,
		EnableQueryExpansion: true,
		MaxExpansions:        2,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(embedder.queries) < 2 {
		t.Fatalf("expected expanded variants to be embedded, got %v", embedder.queries)
	}
	if len(rc.DocumentItems) != 1 {
		t.Fatalf("fusion must deduplicate repeated hits, got %d", len(rc.DocumentItems))
	}
}

func TestRetrieveRejectsEmptyQueryAndDisabledSources(t *testing.T) {
	uc := NewRetrieveUseCase(&embedderFake{}, &vectorFake{}, &webFake{}, nil)

	if _, err := uc.Retrieve(context.Background(), "  ", domain.RetrievalOptions{EnableWebSearch: true}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
	if _, err := uc.Retrieve(context.Background(), "q", domain.RetrievalOptions{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input with no source enabled, got %v", err)
	}
}
