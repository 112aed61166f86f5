package chunking

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// SemanticGrouper clusters sentences by embedding similarity. Merging
// follows single-linkage semantics: pairs are processed in descending
// similarity order and united while similarity stays at or above the
// threshold.
type SemanticGrouper struct {
	embedder  ports.Embedder
	threshold float64
	batchSize int
}

func NewSemanticGrouper(embedder ports.Embedder, threshold float64, batchSize int) *SemanticGrouper {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &SemanticGrouper{
		embedder:  embedder,
		threshold: threshold,
		batchSize: batchSize,
	}
}

// Group attaches embeddings to the sentences and returns semantic groups
// ordered by the index of their earliest sentence. Embedding is
// all-or-nothing: one failed batch fails the whole operation.
func (g *SemanticGrouper) Group(ctx context.Context, sentences []domain.Sentence) ([]domain.SemanticGroup, error) {
	n := len(sentences)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		return []domain.SemanticGroup{{SentenceIndices: []int{0}}}, nil
	}

	if err := g.embedSentences(ctx, sentences); err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "embed sentences", err)
	}

	pairs := similarityPairs(sentences)
	ds := newDisjointSet(n)
	for _, p := range pairs {
		if p.sim < g.threshold {
			// Pairs are sorted descending, nothing below here can merge.
			break
		}
		ds.union(p.i, p.j)
	}
	return ds.groups(), nil
}

// embedSentences issues batches concurrently and reassembles vectors in
// original sentence order.
func (g *SemanticGrouper) embedSentences(ctx context.Context, sentences []domain.Sentence) error {
	type batch struct {
		start int
		texts []string
	}

	var batches []batch
	for start := 0; start < len(sentences); start += g.batchSize {
		end := start + g.batchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		texts := make([]string, 0, end-start)
		for _, s := range sentences[start:end] {
			texts = append(texts, s.Text)
		}
		batches = append(batches, batch{start: start, texts: texts})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(batches))
	for bi, b := range batches {
		wg.Add(1)
		go func(bi int, b batch) {
			defer wg.Done()
			vectors, err := g.embedder.Embed(ctx, b.texts)
			if err != nil {
				errs[bi] = err
				return
			}
			if len(vectors) != len(b.texts) {
				errs[bi] = fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(b.texts))
				return
			}
			for i, v := range vectors {
				sentences[b.start+i].Embedding = v
			}
		}(bi, b)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type simPair struct {
	i, j int
	sim  float64
}

func similarityPairs(sentences []domain.Sentence) []simPair {
	n := len(sentences)
	pairs := make([]simPair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, simPair{
				i:   i,
				j:   j,
				sim: cosineSimilarity(sentences[i].Embedding, sentences[j].Embedding),
			})
		}
	}
	// Descending similarity with a full ordering on ties so grouping is
	// deterministic for a fixed embedding set.
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].sim != pairs[b].sim {
			return pairs[a].sim > pairs[b].sim
		}
		if pairs[a].i != pairs[b].i {
			return pairs[a].i < pairs[b].i
		}
		return pairs[a].j < pairs[b].j
	})
	return pairs
}

// disjointSet with path compression and union by size.
type disjointSet struct {
	parent []int
	size   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

func (ds *disjointSet) union(a, b int) {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return
	}
	if ds.size[ra] < ds.size[rb] {
		ra, rb = rb, ra
	}
	ds.parent[rb] = ra
	ds.size[ra] += ds.size[rb]
}

// groups returns the partition ordered by each group's earliest member,
// members ascending within a group.
func (ds *disjointSet) groups() []domain.SemanticGroup {
	members := make(map[int][]int)
	var order []int
	for i := range ds.parent {
		root := ds.find(i)
		if _, seen := members[root]; !seen {
			order = append(order, root)
		}
		members[root] = append(members[root], i)
	}

	out := make([]domain.SemanticGroup, 0, len(order))
	for _, root := range order {
		out = append(out, domain.SemanticGroup{SentenceIndices: members[root]})
	}
	return out
}
