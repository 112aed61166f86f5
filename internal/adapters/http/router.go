package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
	"github.com/kirillkom/knowledge-chat-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-chat-rag/internal/observability/metrics"
)

const maxUploadBytes = 32 << 20

type Router struct {
	service     string
	ingest      ports.DocumentIngestor
	answer      ports.AnswerService
	documents   ports.DocumentReader
	defaults    domain.RetrievalOptions
	httpMetrics *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	ingest ports.DocumentIngestor,
	answer ports.AnswerService,
	documents ports.DocumentReader,
	defaults domain.RetrievalOptions,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:     service,
		ingest:      ingest,
		answer:      answer,
		documents:   documents,
		defaults:    defaults,
		httpMetrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.queryRAG)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
		return requestIDMiddleware(accessLogMiddleware(rt.httpMetrics.Middleware(rt.service, mux)))
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if !extractor.IsSupported(fileHeader.Filename) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported file type: " + fileHeader.Filename})
		return
	}

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		strings.TrimSpace(r.FormValue("topic_id")),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type ragQueryRequest struct {
	Question string `json:"question"`

	TopicID     string   `json:"topic_id"`
	DocumentIDs []string `json:"document_ids"`

	EnableDocumentSearch *bool `json:"enable_document_search"`
	EnableWebSearch      *bool `json:"enable_web_search"`

	MaxDocumentChunks int      `json:"max_document_chunks"`
	MaxWebResults     int      `json:"max_web_results"`
	MinScore          *float64 `json:"min_score"`

	TimeRange string `json:"time_range"`
	Topic     string `json:"topic"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.answer.Answer(r.Context(), req.Question, rt.buildOptions(req))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordAnswer(answer, time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

// buildOptions overlays the request onto the configured profile defaults.
func (rt *Router) buildOptions(req ragQueryRequest) domain.RetrievalOptions {
	opts := rt.defaults
	opts.TopicID = req.TopicID
	opts.DocumentIDs = req.DocumentIDs
	if req.EnableDocumentSearch != nil {
		opts.EnableDocumentSearch = *req.EnableDocumentSearch
	}
	if req.EnableWebSearch != nil {
		opts.EnableWebSearch = *req.EnableWebSearch
	}
	if req.MaxDocumentChunks > 0 {
		opts.MaxDocumentChunks = req.MaxDocumentChunks
	}
	if req.MaxWebResults > 0 {
		opts.MaxWebResults = req.MaxWebResults
	}
	if req.MinScore != nil {
		opts.MinScore = *req.MinScore
	}
	if req.TimeRange != "" {
		opts.TimeRange = req.TimeRange
	}
	if req.Topic != "" {
		opts.Topic = req.Topic
	}
	return opts
}

func (rt *Router) recordAnswer(answer *domain.Answer, duration time.Duration) {
	if rt.httpMetrics == nil {
		return
	}
	const endpoint = "rag_query"
	rt.httpMetrics.RecordRAGObservation(rt.service, endpoint, len(answer.Sources), duration)
	rt.httpMetrics.RecordDegradation(rt.service, endpoint, string(answer.DegradationLevel))
	rt.httpMetrics.RecordTokenUsage(rt.service, endpoint, "", answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
	if !answer.Citations.IsValid {
		rt.httpMetrics.RecordInvalidCitations(rt.service, endpoint)
	}
	for source, elapsed := range answer.SourceDurations {
		rt.httpMetrics.ObserveSourceSearch(rt.service, source, elapsed)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
