// Package mcpadapter exposes retrieval and question answering as MCP tools.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/core/ports"
)

const (
	serverName = "assistente-sindacale"

	toolSearch = "search_documents"
	toolAsk    = "ask_question"
	toolStats  = "index_stats"
)

type handlers struct {
	query        ports.DocumentQueryService
	defaultLimit int
}

func NewServer(query ports.DocumentQueryService, defaultLimit int, version string) *server.MCPServer {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	h := &handlers{query: query, defaultLimit: defaultLimit}

	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(mcp.NewTool(toolSearch,
		mcp.WithDescription("Search the indexed school-labor documents (CCNL, circolari, delibere) and return the most similar passages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of passages to return")),
	), h.search)
	s.AddTool(mcp.NewTool(toolAsk,
		mcp.WithDescription("Answer a question about school staff contracts using only the indexed documents, citing the sources."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in natural language")),
		mcp.WithNumber("limit", mcp.Description("Number of passages used as context")),
	), h.ask)
	s.AddTool(mcp.NewTool(toolStats,
		mcp.WithDescription("Report how many chunks are currently indexed."),
	), h.stats)
	return s
}

func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := h.query.Search(ctx, query, h.limit(req))
	if err != nil {
		return toolError(toolSearch, err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(domain.NoDocumentsContext), nil
	}
	return mcp.NewToolResultText(formatResults(results)), nil
}

func (h *handlers) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := h.query.Answer(ctx, question, h.limit(req))
	if err != nil {
		return toolError(toolAsk, err), nil
	}
	return mcp.NewToolResultText(formatAnswer(answer)), nil
}

func (h *handlers) stats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.query.Stats(ctx)
	if err != nil {
		return toolError(toolStats, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("chunks indexed: %d", stats.Chunks)), nil
}

func (h *handlers) limit(req mcp.CallToolRequest) int {
	if limit := req.GetInt("limit", 0); limit > 0 {
		return limit
	}
	return h.defaultLimit
}

func toolError(tool string, err error) *mcp.CallToolResult {
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(err.Error())
}

func formatResults(results []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s, chunk %s, score %.3f)\n%s",
			i+1, r.Metadata.Filename, r.Metadata.Category,
			domain.ChunkPosition(r.Metadata), r.Score, r.Text)
	}
	return b.String()
}

func formatAnswer(answer *domain.Answer) string {
	if len(answer.Sources) == 0 {
		return answer.Text
	}
	var b strings.Builder
	b.WriteString(answer.Text)
	b.WriteString("\n\nFonti:")
	for _, src := range answer.Sources {
		fmt.Fprintf(&b, "\n- %s (%s, chunk %s)", src.Filename, src.Category, src.Position)
	}
	return b.String()
}
