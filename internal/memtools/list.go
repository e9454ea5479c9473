package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// ListTool handles the memory_list MCP tool.
type ListTool struct {
	deps Deps
}

// NewListTool creates a ListTool.
func NewListTool(deps Deps) *ListTool {
	return &ListTool{deps: deps}
}

// defaultListLimit mirrors the store's own default.
const defaultListLimit = 20

// Definition returns the MCP tool definition for memory_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_list",
		mcp.WithDescription(
			"List memories newest first, optionally filtered by category, project, or session.",
		),
		mcp.WithString("category",
			mcp.Description("Filter by category"),
		),
		mcp.WithString("project_id",
			mcp.Description("Filter by project"),
		),
		mcp.WithString("session_id",
			mcp.Description("Filter by the session that stored them"),
		),
		mcp.WithString("scope",
			mcp.Description("Visibility partition: project, global, or all (default: all)"),
			mcp.Enum(memory.ScopeProject, memory.ScopeGlobal, memory.ScopeAll),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Rows to skip, for paging"),
		),
		mcp.WithString("detail_level",
			mcp.Description("How much of each memory to show: summary, standard, or full (default: standard)"),
			mcp.Enum(memory.DetailLevelValues()...),
		),
	)
}

// Handle processes the memory_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	scope := req.GetString("scope", "")
	if scope == "" {
		scope = t.deps.defaultScope()
	}

	params := memory.ListParams{
		Category:  req.GetString("category", ""),
		ProjectID: req.GetString("project_id", ""),
		SessionID: req.GetString("session_id", ""),
		Scope:     scope,
		Limit:     intArg(req, "limit", defaultListLimit),
		Offset:    intArg(req, "offset", 0),
	}

	memories, err := store.List(params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list memories: %v", err)), nil
	}
	if len(memories) == 0 {
		return mcp.NewToolResultText("No memories match the given filters."), nil
	}

	total, err := store.Count(params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count memories: %v", err)), nil
	}

	level := memory.ParseDetailLevel(req.GetString("detail_level", ""))

	var b strings.Builder
	fmt.Fprintf(&b, "%d memories (newest first):\n\n", total)
	for i := range memories {
		writeMemory(&b, i, &memories[i], level)
	}
	b.WriteString(memory.NavigationHint(params.Offset+len(memories), int(total), "Use offset to page."))

	return mcp.NewToolResultText(finishReadResponse(b.String(), level)), nil
}
