package usecase

import (
	"sort"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

type fusedItem struct {
	item  domain.ContextItem
	score float64
}

// fuseItemsRRF merges ranked candidate lists with reciprocal rank fusion.
// Items sharing a Key accumulate rank credit across lists; ties break on
// identity fields so the output is stable across runs.
func fuseItemsRRF(lists [][]domain.ContextItem, rrfK int) []domain.ContextItem {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedItem)
	order := make([]string, 0)
	for _, list := range lists {
		for rank, item := range list {
			key := item.Key()
			candidate, seen := acc[key]
			if !seen {
				order = append(order, key)
				candidate.item = item
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
			acc[key] = candidate
		}
	}

	out := make([]domain.ContextItem, 0, len(acc))
	for _, key := range order {
		c := acc[key]
		item := c.item
		item.Score = c.score
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func trimItems(items []domain.ContextItem, limit int) []domain.ContextItem {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
