package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// SearchTool handles the memory_search MCP tool.
type SearchTool struct {
	deps Deps
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(deps Deps) *SearchTool {
	return &SearchTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search persistent memory. Use this BEFORE starting work to recall past decisions, "+
				"conventions, fixed bugs, and known gotchas. Results are ranked by relevance, "+
				"recency, and how often they were useful before.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query — natural language or keywords"),
		),
		mcp.WithString("category",
			mcp.Description("Filter by category: decision, pattern, debugging, preference, convention, discovery, anti-pattern, general"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project to search in; global memories are always included unless scope says otherwise"),
		),
		mcp.WithString("scope",
			mcp.Description("Visibility partition: project, global, or all (default: all)"),
			mcp.Enum(memory.ScopeProject, memory.ScopeGlobal, memory.ScopeAll),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default from configuration, normally 10)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("How much of each memory to show: summary, standard, or full (default: standard)"),
			mcp.Enum(memory.DetailLevelValues()...),
		),
	)
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	scope := req.GetString("scope", "")
	if scope == "" {
		scope = t.deps.defaultScope()
	}

	results, err := store.Search(memory.SearchParams{
		Query:     query,
		Category:  req.GetString("category", ""),
		ProjectID: req.GetString("project_id", ""),
		Scope:     scope,
		Limit:     intArg(req, "limit", t.deps.searchLimit()),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	level := memory.ParseDetailLevel(req.GetString("detail_level", ""))

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(results))
	for i := range results {
		writeMemory(&b, i, &results[i].Memory, level)
	}

	return mcp.NewToolResultText(finishReadResponse(b.String(), level)), nil
}
