package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Stage configs are intentionally one struct per stage so each stage can be
// toggled, configured and unit-tested on its own.
type DedupConfig struct {
	Enabled   bool
	Threshold float64
}

type DiversityConfig struct {
	Enabled    bool
	Lambda     float64
	MaxResults int
}

type RerankConfig struct {
	Enabled    bool
	Strategy   string
	TopK       int
	MaxResults int
}

type AdaptiveConfig struct {
	Enabled   bool
	MinChunks int
	MaxChunks int
}

type BudgetConfig struct {
	Enabled   bool
	Model     string
	MaxTokens int
}

type PipelineConfig struct {
	Dedup     DedupConfig
	Diversity DiversityConfig
	Rerank    RerankConfig
	Adaptive  AdaptiveConfig
	Budget    BudgetConfig
}

// Pipeline applies the post-processing stages to a retrieved item list in a
// fixed order: dedup, diversity, rerank, adaptive selection, token budget.
// Every stage is a pure function over its input slice.
type Pipeline struct {
	cfg     PipelineConfig
	counter ports.TokenCounter
}

func NewPipeline(cfg PipelineConfig, counter ports.TokenCounter) *Pipeline {
	return &Pipeline{cfg: cfg, counter: counter}
}

func (p *Pipeline) Apply(question string, items []domain.ContextItem) []domain.ContextItem {
	if p.cfg.Dedup.Enabled {
		items = deduplicateItems(items, p.cfg.Dedup)
	}
	if p.cfg.Diversity.Enabled {
		items = diversityFilter(items, p.cfg.Diversity)
	}
	if p.cfg.Rerank.Enabled {
		items = rerankItems(question, items, p.cfg.Rerank)
	}
	if p.cfg.Adaptive.Enabled {
		items = adaptiveSelect(question, items, p.cfg.Adaptive)
	}
	if p.cfg.Budget.Enabled {
		items = enforceTokenBudget(items, p.cfg.Budget, p.counter)
	}
	return items
}

// deduplicateItems keeps the higher-scored item of any pair whose content
// similarity is at or above the threshold.
func deduplicateItems(items []domain.ContextItem, cfg DedupConfig) []domain.ContextItem {
	if len(items) < 2 {
		return items
	}
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.92
	}

	ranked := sortedByScore(items)
	kept := make([]domain.ContextItem, 0, len(ranked))
	for _, item := range ranked {
		duplicate := false
		for _, winner := range kept {
			if itemSimilarity(item, winner) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, item)
		}
	}
	return kept
}

// diversityFilter greedily selects items maximizing marginal relevance:
// lambda*relevance - (1-lambda)*max similarity to the already selected set.
func diversityFilter(items []domain.ContextItem, cfg DiversityConfig) []domain.ContextItem {
	if len(items) == 0 {
		return items
	}
	lambda := cfg.Lambda
	if lambda <= 0 || lambda > 1 {
		lambda = 0.7
	}
	max := cfg.MaxResults
	if max <= 0 || max > len(items) {
		max = len(items)
	}

	candidates := sortedByScore(items)
	selected := make([]domain.ContextItem, 0, max)
	for len(selected) < max && len(candidates) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, cand := range candidates {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := itemSimilarity(cand, sel); sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*cand.Score - (1-lambda)*maxSim
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}
		selected = append(selected, candidates[bestIdx])
		candidates = append(candidates[:bestIdx], candidates[bestIdx+1:]...)
	}
	return selected
}

// adaptiveSelect sizes the context to the query: more clauses and more
// content tokens pull the chunk count toward MaxChunks.
func adaptiveSelect(question string, items []domain.ContextItem, cfg AdaptiveConfig) []domain.ContextItem {
	min := cfg.MinChunks
	if min <= 0 {
		min = 1
	}
	max := cfg.MaxChunks
	if max < min {
		max = min
	}

	target := min + queryComplexity(question)
	if target > max {
		target = max
	}
	if target >= len(items) {
		return items
	}
	// Items arrive documents-first; truncate over a score ordering so a
	// strong web result is not dropped for a weaker document chunk.
	return sortedByScore(items)[:target]
}

// queryComplexity counts extra context the query earns: one unit per four
// content tokens plus one per explicit clause separator.
func queryComplexity(question string) int {
	tokens := dropStopTokens(splitAlphaNumLower(question))
	complexity := len(tokens) / 4
	complexity += strings.Count(question, ",")
	complexity += strings.Count(question, ";")
	for _, conj := range []string{" and ", " versus ", " compared "} {
		complexity += strings.Count(strings.ToLower(question), conj)
	}
	return complexity
}

// enforceTokenBudget drops the lowest-scored items until total content
// tokens fit the model's context budget, preserving the order of survivors.
func enforceTokenBudget(items []domain.ContextItem, cfg BudgetConfig, counter ports.TokenCounter) []domain.ContextItem {
	if len(items) == 0 || counter == nil {
		return items
	}
	budget := cfg.MaxTokens
	if budget <= 0 {
		budget = modelContextBudget(cfg.Model)
	}

	tokens := make([]int, len(items))
	total := 0
	for i, item := range items {
		tokens[i] = counter.CountTokens(item.Content, cfg.Model)
		total += tokens[i]
	}
	if total <= budget {
		return items
	}

	drop := make(map[int]bool)
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Score < items[order[b]].Score
	})
	remaining := len(items)
	for _, idx := range order {
		if total <= budget || remaining == 1 {
			break
		}
		drop[idx] = true
		total -= tokens[idx]
		remaining--
	}

	out := make([]domain.ContextItem, 0, len(items))
	for i, item := range items {
		if drop[i] {
			continue
		}
		out = append(out, item)
	}
	return out
}

var modelBudgets = map[string]int{
	"gpt-3.5-turbo": 4096,
	"gpt-4":         8192,
	"gpt-4o":        16384,
	"llama3":        8192,
	"qwen2.5":       8192,
}

func modelContextBudget(model string) int {
	if budget, ok := modelBudgets[strings.ToLower(strings.TrimSpace(model))]; ok {
		return budget
	}
	return 4096
}

// itemSimilarity compares content embeddings when both are attached and
// falls back to token-set overlap otherwise.
func itemSimilarity(a, b domain.ContextItem) float64 {
	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		return cosineSimilarity32(a.Embedding, b.Embedding)
	}
	return jaccardSimilarity(toTokenSet(a.Content), toTokenSet(b.Content))
}

func cosineSimilarity32(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for token := range a {
		if _, ok := b[token]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func sortedByScore(items []domain.ContextItem) []domain.ContextItem {
	out := make([]domain.ContextItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}
