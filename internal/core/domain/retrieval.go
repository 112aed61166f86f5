package domain

import (
	"strconv"
	"time"
)

type ItemKind string

const (
	ItemKindDocument ItemKind = "document"
	ItemKindWeb      ItemKind = "web"
)

// ContextItem is the tagged union over retrieved document chunks and web
// results. Post-processing stages operate only on Kind, Score, Content and
// Key; the variant fields matter again at citation-source projection.
type ContextItem struct {
	Kind    ItemKind `json:"kind"`
	Score   float64  `json:"score"`
	Content string   `json:"content"`

	// document variant
	DocumentID string `json:"document_id,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Section    string `json:"section,omitempty"`

	// web variant
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`

	// Attached before similarity-based stages run; empty when the content
	// embedding could not be computed.
	Embedding []float32 `json:"-"`
}

// Key identifies the item across retrieval sources.
func (it ContextItem) Key() string {
	if it.Kind == ItemKindWeb {
		return "web|" + it.URL
	}
	return "doc|" + it.DocumentID + "|" + strconv.Itoa(it.ChunkIndex)
}

type DegradationLevel string

const (
	DegradationNone    DegradationLevel = "none"
	DegradationPartial DegradationLevel = "partial"
	// DegradationFallback marks a context served entirely from the keyword
	// fallback after every primary source failed.
	DegradationFallback DegradationLevel = "fallback"
)

// RetrievalContext is the per-query result of the retrieval orchestrator.
// It is request-scoped: consumed by the answer generator and the citation
// engine, then discarded.
type RetrievalContext struct {
	DocumentItems    []ContextItem    `json:"document_items"`
	WebItems         []ContextItem    `json:"web_items"`
	Degraded         bool             `json:"degraded"`
	DegradationLevel DegradationLevel `json:"degradation_level"`
	AffectedServices []string         `json:"affected_services,omitempty"`

	// Wall-clock spent per retrieval source, keyed by service name.
	// Observability-only; not part of the response body.
	SourceDurations map[string]time.Duration `json:"-"`
}

// AllItems returns document items followed by web items.
func (rc *RetrievalContext) AllItems() []ContextItem {
	out := make([]ContextItem, 0, len(rc.DocumentItems)+len(rc.WebItems))
	out = append(out, rc.DocumentItems...)
	out = append(out, rc.WebItems...)
	return out
}

// SearchFilter scopes a vector index query.
type SearchFilter struct {
	DocumentIDs []string
	TopicID     string
	MinScore    float64
}

// RetrievalOptions is the recognized configuration surface of the retrieval
// orchestrator. Post-processing stages carry their own configs; see the
// usecase pipeline.
type RetrievalOptions struct {
	EnableDocumentSearch bool
	EnableWebSearch      bool
	EnableKeywordSearch  bool

	MaxDocumentChunks int
	MaxWebResults     int
	MinScore          float64

	DocumentIDs []string
	TopicID     string

	TimeRange string
	Topic     string

	EnableQueryExpansion bool
	ExpansionStrategy    string
	MaxExpansions        int
}

// WebSearchOptions is the option subset forwarded to the web search
// provider.
type WebSearchOptions struct {
	MaxResults int
	TimeRange  string
	Topic      string
}

// WebResult is a single ranked result from the web search provider. A
// missing provider score is normalized to the neutral constant 0.5 before
// the result enters score-dependent stages.
type WebResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Content       string   `json:"content"`
	Score         *float64 `json:"score,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
}

type WebSearchResult struct {
	Results      []WebResult `json:"results"`
	TotalResults int         `json:"total_results"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type Generation struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Answer is the user-facing result of a RAG query.
type Answer struct {
	Text             string           `json:"text"`
	Sources          []Source         `json:"sources"`
	Citations        CitationReport   `json:"citations"`
	Degraded         bool             `json:"degraded"`
	DegradationLevel DegradationLevel `json:"degradation_level"`
	AffectedServices []string         `json:"affected_services,omitempty"`
	Usage            Usage            `json:"usage"`

	// Carried over from the retrieval context for metrics.
	SourceDurations map[string]time.Duration `json:"-"`
}
