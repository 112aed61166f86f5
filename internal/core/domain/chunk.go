package domain

// Sentence is a segmented span of document text with character offsets into
// the source. The embedding is attached after the grouper has called the
// embedding provider and is never mutated afterwards.
type Sentence struct {
	Text       string    `json:"text"`
	Index      int       `json:"index"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
}

// Paragraph is a blank-line-delimited block of the source text.
type Paragraph struct {
	Index     int `json:"index"`
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`
}

// Section is a heading-delimited region of the source text. EndChar is the
// offset where the next section begins, or the end of the document.
type Section struct {
	Title     string `json:"title"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// SemanticGroup is an ordered set of sentence indices judged mutually
// similar. Groups partition the sentence list: every sentence belongs to
// exactly one group.
type SemanticGroup struct {
	SentenceIndices []int `json:"sentence_indices"`
}

// Chunk is a token-budgeted retrieval unit built from one or more semantic
// groups. TokenCount is always recomputed from Content, never carried over
// from running totals.
type Chunk struct {
	Content                   string `json:"content"`
	StartChar                 int    `json:"start_char"`
	EndChar                   int    `json:"end_char"`
	TokenCount                int    `json:"token_count"`
	ChunkIndex                int    `json:"chunk_index"`
	SentenceIndices           []int  `json:"sentence_indices"`
	Section                   string `json:"section,omitempty"`
	ParagraphIndices          []int  `json:"paragraph_indices,omitempty"`
	StartsAtParagraphBoundary bool   `json:"starts_at_paragraph_boundary"`
	EndsAtParagraphBoundary   bool   `json:"ends_at_paragraph_boundary"`
}
