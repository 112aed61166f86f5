package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

// rerankItems rescores the top-K items with a pairwise query-item relevance
// model, stable-sorts the head by the new score and truncates to MaxResults.
// Items past the head keep their fused order.
func rerankItems(question string, items []domain.ContextItem, cfg RerankConfig) []domain.ContextItem {
	if len(items) == 0 {
		return items
	}
	topK := cfg.TopK
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	head := make([]domain.ContextItem, topK)
	copy(head, items[:topK])
	queryTokens := toTokenSet(question)

	minScore := head[0].Score
	maxScore := head[0].Score
	for _, item := range head[1:] {
		if item.Score < minScore {
			minScore = item.Score
		}
		if item.Score > maxScore {
			maxScore = item.Score
		}
	}

	rangeScore := maxScore - minScore
	normalize := func(v float64) float64 {
		if rangeScore <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / rangeScore
	}

	for i := range head {
		normalized := normalize(head[i].Score)
		overlap := tokenOverlap(queryTokens, toTokenSet(head[i].Content))
		titleBoost := titleTokenHit(queryTokens, itemTitle(head[i]))
		head[i].Score = 0.60*normalized + 0.30*overlap + 0.10*titleBoost
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		return head[i].Key() < head[j].Key()
	})

	out := head
	if topK < len(items) {
		out = make([]domain.ContextItem, 0, len(items))
		out = append(out, head...)
		out = append(out, items[topK:]...)
	}
	if cfg.MaxResults > 0 && len(out) > cfg.MaxResults {
		out = out[:cfg.MaxResults]
	}
	return out
}

func itemTitle(item domain.ContextItem) string {
	if item.Kind == domain.ItemKindWeb {
		return item.Title
	}
	return item.Filename
}

func tokenOverlap(query, content map[string]struct{}) float64 {
	if len(query) == 0 || len(content) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := content[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func titleTokenHit(query map[string]struct{}, title string) float64 {
	if len(query) == 0 || title == "" {
		return 0
	}
	title = strings.ToLower(title)
	for token := range query {
		if token == "" {
			continue
		}
		if strings.Contains(title, token) {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
