package chunking

import (
	"strings"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Assembler walks semantic groups in order and packs them into
// token-budgeted chunks with sentence-level overlap across boundaries.
type Assembler struct {
	counter      ports.TokenCounter
	encoding     string
	maxChunkSize int
	minChunkSize int
	overlapSize  int
}

func NewAssembler(counter ports.TokenCounter, encoding string, maxChunkSize, minChunkSize, overlapSize int) *Assembler {
	return &Assembler{
		counter:      counter,
		encoding:     encoding,
		maxChunkSize: maxChunkSize,
		minChunkSize: minChunkSize,
		overlapSize:  overlapSize,
	}
}

func (a *Assembler) Assemble(st Structure, groups []domain.SemanticGroup) []domain.Chunk {
	if len(st.Sentences) == 0 || len(groups) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	var buffer []int
	bufTokens := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, a.closeChunk(st, buffer))
		overlap := a.overlapPrefix(st, buffer)
		buffer = overlap
		bufTokens = sentenceTokens(st, overlap)
	}

	appendRun := func(indices []int) {
		runTokens := sentenceTokens(st, indices)
		if len(buffer) > 0 && bufTokens+runTokens > a.maxChunkSize {
			flush()
		}
		buffer = append(buffer, indices...)
		bufTokens += runTokens
	}

	for _, group := range groups {
		if sentenceTokens(st, group.SentenceIndices) > a.maxChunkSize {
			// A group that alone exceeds the budget is packed sentence by
			// sentence so interior chunks keep the size invariant.
			for _, idx := range group.SentenceIndices {
				appendRun([]int{idx})
			}
			continue
		}
		appendRun(group.SentenceIndices)
	}

	if len(buffer) > 0 {
		last := a.closeChunk(st, buffer)
		if last.TokenCount < a.minChunkSize && len(chunks) > 0 {
			chunks[len(chunks)-1] = a.mergeChunks(st, chunks[len(chunks)-1], last)
		} else {
			chunks = append(chunks, last)
		}
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}

func (a *Assembler) closeChunk(st Structure, indices []int) domain.Chunk {
	texts := make([]string, 0, len(indices))
	start, end := -1, -1
	for _, idx := range indices {
		s := st.Sentences[idx]
		texts = append(texts, s.Text)
		if start < 0 || s.StartChar < start {
			start = s.StartChar
		}
		if s.EndChar > end {
			end = s.EndChar
		}
	}
	content := strings.Join(texts, " ")

	chunk := domain.Chunk{
		Content:         content,
		StartChar:       start,
		EndChar:         end,
		TokenCount:      a.counter.CountTokens(content, a.encoding),
		SentenceIndices: append([]int(nil), indices...),
	}
	a.attachStructure(st, &chunk)
	return chunk
}

func (a *Assembler) mergeChunks(st Structure, prev, last domain.Chunk) domain.Chunk {
	seen := make(map[int]struct{}, len(prev.SentenceIndices))
	merged := append([]int(nil), prev.SentenceIndices...)
	for _, idx := range prev.SentenceIndices {
		seen[idx] = struct{}{}
	}
	for _, idx := range last.SentenceIndices {
		if _, dup := seen[idx]; dup {
			continue
		}
		merged = append(merged, idx)
	}
	return a.closeChunk(st, merged)
}

// overlapPrefix walks backward from the buffer's end, greedily taking whole
// sentences while their cumulative token count stays within the overlap
// budget. The result preserves original order.
func (a *Assembler) overlapPrefix(st Structure, buffer []int) []int {
	if a.overlapSize <= 0 {
		return nil
	}
	total := 0
	cut := len(buffer)
	for i := len(buffer) - 1; i >= 0; i-- {
		tok := st.Sentences[buffer[i]].TokenCount
		if total+tok > a.overlapSize {
			break
		}
		total += tok
		cut = i
	}
	if cut >= len(buffer) {
		return nil
	}
	return append([]int(nil), buffer[cut:]...)
}

func (a *Assembler) attachStructure(st Structure, chunk *domain.Chunk) {
	for _, sec := range st.Sections {
		if chunk.StartChar >= sec.StartChar && chunk.StartChar < sec.EndChar {
			chunk.Section = sec.Title
			break
		}
	}
	for _, p := range st.Paragraphs {
		if p.EndChar <= chunk.StartChar || p.StartChar >= chunk.EndChar {
			continue
		}
		chunk.ParagraphIndices = append(chunk.ParagraphIndices, p.Index)
		if p.StartChar == chunk.StartChar {
			chunk.StartsAtParagraphBoundary = true
		}
		if p.EndChar == chunk.EndChar {
			chunk.EndsAtParagraphBoundary = true
		}
	}
}

func sentenceTokens(st Structure, indices []int) int {
	total := 0
	for _, idx := range indices {
		total += st.Sentences[idx].TokenCount
	}
	return total
}
