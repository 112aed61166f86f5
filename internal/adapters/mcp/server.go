package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Server exposes the answer path as an MCP tool so agent hosts can query
// the knowledge base over stdio.
type Server struct {
	mcpServer *server.MCPServer
	answer    ports.AnswerService
	defaults  domain.RetrievalOptions
}

func NewServer(version string, answer ports.AnswerService, defaults domain.RetrievalOptions) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"knowledge-chat-rag",
			version,
			server.WithToolCapabilities(false),
		),
		answer:   answer,
		defaults: defaults,
	}

	tool := mcp.NewTool("search_knowledge",
		mcp.WithDescription("Answer a question from the indexed knowledge base with cited sources."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithString("topic_id",
			mcp.Description("Restrict retrieval to documents linked to this topic."),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of document chunks to retrieve."),
		),
		mcp.WithBoolean("include_web",
			mcp.Description("Also search the web in addition to indexed documents."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSearchKnowledge)
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

type searchResult struct {
	Answer           string          `json:"answer"`
	Sources          []domain.Source `json:"sources"`
	Degraded         bool            `json:"degraded,omitempty"`
	DegradationLevel string          `json:"degradation_level,omitempty"`
}

func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	opts := s.defaults
	opts.TopicID = request.GetString("topic_id", "")
	if maxResults := request.GetInt("max_results", 0); maxResults > 0 {
		opts.MaxDocumentChunks = maxResults
	}
	if request.GetBool("include_web", false) {
		opts.EnableWebSearch = true
	}

	answer, err := s.answer.Answer(ctx, query, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	payload, err := json.Marshal(searchResult{
		Answer:           answer.Text,
		Sources:          answer.Sources,
		Degraded:         answer.Degraded,
		DegradationLevel: string(answer.DegradationLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
