package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

const (
	serviceDocuments = "documents"
	serviceWeb       = "web"

	defaultMaxDocumentChunks = 5
	defaultMaxWebResults     = 5

	// Web results sometimes arrive without a provider score. They get this
	// neutral constant so score-dependent stages still see them.
	neutralWebScore = 0.5
)

// RetrieveUseCase fans a query out to the enabled retrieval sources and
// assembles a RetrievalContext with per-source failure isolation.
type RetrieveUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorIndex
	webSearch ports.WebSearcher
	topics    ports.TopicStore
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorIndex,
	webSearch ports.WebSearcher,
	topics ports.TopicStore,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		webSearch: webSearch,
		topics:    topics,
	}
}

type sourceResult struct {
	service string
	items   []domain.ContextItem
	elapsed time.Duration
	err     error
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve context", errors.New("query is empty"))
	}
	if !opts.EnableDocumentSearch && !opts.EnableWebSearch {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve context", errors.New("no retrieval source enabled"))
	}
	if opts.MaxDocumentChunks <= 0 {
		opts.MaxDocumentChunks = defaultMaxDocumentChunks
	}
	if opts.MaxWebResults <= 0 {
		opts.MaxWebResults = defaultMaxWebResults
	}

	results := make(chan sourceResult, 2)
	var wg sync.WaitGroup

	if opts.EnableDocumentSearch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			items, err := uc.searchDocuments(ctx, query, opts)
			results <- sourceResult{service: serviceDocuments, items: items, elapsed: time.Since(start), err: err}
		}()
	}
	if opts.EnableWebSearch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			items, err := uc.searchWeb(ctx, query, opts)
			results <- sourceResult{service: serviceWeb, items: items, elapsed: time.Since(start), err: err}
		}()
	}

	wg.Wait()
	close(results)

	rc := &domain.RetrievalContext{
		DegradationLevel: domain.DegradationNone,
		SourceDurations:  make(map[string]time.Duration, 2),
	}
	enabled := 0
	failed := 0
	var failures []error
	for res := range results {
		enabled++
		rc.SourceDurations[res.service] = res.elapsed
		if res.err != nil {
			failed++
			failures = append(failures, fmt.Errorf("%s: %w", res.service, res.err))
			rc.AffectedServices = append(rc.AffectedServices, res.service)
			continue
		}
		switch res.service {
		case serviceDocuments:
			rc.DocumentItems = res.items
		case serviceWeb:
			rc.WebItems = res.items
		}
	}
	sort.Strings(rc.AffectedServices)

	if failed == 0 {
		return rc, nil
	}
	if failed < enabled {
		rc.Degraded = true
		rc.DegradationLevel = domain.DegradationPartial
		return rc, nil
	}

	// Every enabled source failed. The keyword fallback, when enabled, is
	// the last resort before surfacing a total failure. It needs the topic
	// filter resolved again; if that resolution is what broke the document
	// source the fallback is skipped rather than served unscoped.
	if opts.EnableKeywordSearch {
		filter, filterErr := uc.buildFilter(ctx, opts)
		if filterErr != nil {
			failures = append(failures, fmt.Errorf("keyword fallback: %w", filterErr))
		} else {
			items, kwErr := uc.vectorDB.SearchLexical(ctx, query, opts.MaxDocumentChunks, filter)
			if kwErr == nil {
				rc.DocumentItems = items
				rc.Degraded = true
				rc.DegradationLevel = domain.DegradationFallback
				return rc, nil
			}
			failures = append(failures, fmt.Errorf("keyword fallback: %w", kwErr))
		}
	}
	return nil, domain.WrapError(domain.ErrRetrievalFailure, "retrieve context", errors.Join(failures...))
}

// buildFilter resolves topic scoping into concrete document ids. It runs
// inside the document source so a topic-store outage degrades that source
// alone instead of failing the whole retrieval.
func (uc *RetrieveUseCase) buildFilter(ctx context.Context, opts domain.RetrievalOptions) (domain.SearchFilter, error) {
	filter := domain.SearchFilter{
		DocumentIDs: opts.DocumentIDs,
		TopicID:     opts.TopicID,
		MinScore:    opts.MinScore,
	}
	if opts.TopicID == "" || uc.topics == nil {
		return filter, nil
	}
	ids, err := uc.topics.ResolveDocuments(ctx, opts.TopicID)
	if err != nil {
		return domain.SearchFilter{}, fmt.Errorf("resolve topic documents: %w", err)
	}
	filter.DocumentIDs = mergeIDs(filter.DocumentIDs, ids)
	return filter, nil
}

func (uc *RetrieveUseCase) searchDocuments(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.ContextItem, error) {
	filter, err := uc.buildFilter(ctx, opts)
	if err != nil {
		return nil, err
	}

	queries := []string{query}
	if opts.EnableQueryExpansion {
		queries = append(queries, expandQuery(query, opts.ExpansionStrategy, opts.MaxExpansions)...)
	}

	lists := make([][]domain.ContextItem, 0, len(queries))
	for _, q := range queries {
		vector, err := uc.embedder.EmbedQuery(ctx, q)
		if err != nil {
			if len(lists) > 0 {
				break
			}
			return nil, fmt.Errorf("embed query: %w", err)
		}
		items, err := uc.vectorDB.Search(ctx, vector, opts.MaxDocumentChunks, filter)
		if err != nil {
			if len(lists) > 0 {
				break
			}
			return nil, fmt.Errorf("search vector index: %w", err)
		}
		lists = append(lists, items)
	}

	if len(lists) == 1 {
		return lists[0], nil
	}
	return trimItems(fuseItemsRRF(lists, 0), opts.MaxDocumentChunks), nil
}

func (uc *RetrieveUseCase) searchWeb(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.ContextItem, error) {
	if uc.webSearch == nil {
		return nil, fmt.Errorf("web search: provider not configured")
	}
	result, err := uc.webSearch.Search(ctx, query, domain.WebSearchOptions{
		MaxResults: opts.MaxWebResults,
		TimeRange:  opts.TimeRange,
		Topic:      opts.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	items := make([]domain.ContextItem, 0, len(result.Results))
	for _, r := range result.Results {
		score := neutralWebScore
		if r.Score != nil {
			score = *r.Score
		}
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}
		items = append(items, domain.ContextItem{
			Kind:          domain.ItemKindWeb,
			Score:         score,
			Content:       r.Content,
			URL:           r.URL,
			Title:         r.Title,
			PublishedDate: r.PublishedDate,
		})
	}
	return items, nil
}

// expandQuery produces deterministic lexical variants of the query. The
// keyword strategy strips everything but content tokens; the quoted strategy
// additionally keeps the longest token on its own as a focus term.
func expandQuery(query, strategy string, maxExpansions int) []string {
	if maxExpansions <= 0 {
		maxExpansions = 2
	}
	tokens := splitAlphaNumLower(query)
	if len(tokens) == 0 {
		return nil
	}

	var out []string
	seen := map[string]struct{}{strings.ToLower(query): {}}
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "focus":
		add(strings.Join(tokens, " "))
		longest := tokens[0]
		for _, tok := range tokens[1:] {
			if len(tok) > len(longest) {
				longest = tok
			}
		}
		add(longest)
	default:
		add(strings.Join(tokens, " "))
		add(strings.Join(dropStopTokens(tokens), " "))
	}

	if len(out) > maxExpansions {
		out = out[:maxExpansions]
	}
	return out
}

var queryStopTokens = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "can": {}, "do": {}, "does": {},
	"how": {}, "is": {}, "of": {}, "or": {}, "the": {}, "to": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {},
}

func dropStopTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := queryStopTokens[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func mergeIDs(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string{}, a...), b...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
