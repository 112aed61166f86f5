package domain

type SourceType string

const (
	SourceTypeDocument SourceType = "doc"
	SourceTypeWeb      SourceType = "web"
)

// Source is the citable projection of a ContextItem handed to the language
// model. Index is 1-based and stable per response, numbered per type.
type Source struct {
	Type       SourceType `json:"type"`
	Index      int        `json:"index"`
	Title      string     `json:"title"`
	DocumentID string     `json:"document_id,omitempty"`
	ChunkIndex int        `json:"chunk_index,omitempty"`
	URL        string     `json:"url,omitempty"`
}

type CitationStatus string

const (
	CitationMatched   CitationStatus = "matched"
	CitationUnmatched CitationStatus = "unmatched"
)

// Citation is a parsed reference inside generated text.
type Citation struct {
	Type   SourceType     `json:"type"`
	Index  int            `json:"index"`
	Offset int            `json:"offset"`
	Status CitationStatus `json:"status,omitempty"`
}

// CitationReport classifies every citation found in generated text against
// the source list. Errors (dangling references) make IsValid false but do
// not block delivering the answer; warnings are stylistic only.
type CitationReport struct {
	Citations      []Citation `json:"citations"`
	Malformed      []string   `json:"malformed,omitempty"`
	MissingSources []Source   `json:"missing_sources,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
	IsValid        bool       `json:"is_valid"`
}
