package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// ─── UpdateTool ─────────────────────────────────────────────────────────────

// UpdateTool handles the memory_update MCP tool.
type UpdateTool struct {
	deps Deps
}

// NewUpdateTool creates an UpdateTool.
func NewUpdateTool(deps Deps) *UpdateTool {
	return &UpdateTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_update.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_update",
		mcp.WithDescription(
			"Update an existing memory by ID. Only provided fields are changed.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory ID to update"),
		),
		mcp.WithString("content",
			mcp.Description("New content"),
		),
		mcp.WithString("category",
			mcp.Description("New category"),
		),
		mcp.WithString("source",
			mcp.Description("New source"),
		),
	)
}

// Handle processes the memory_update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	patch := memory.UpdatePatch{}
	hasUpdates := false
	if v := req.GetString("content", ""); v != "" {
		patch.Content = &v
		hasUpdates = true
	}
	if v := req.GetString("category", ""); v != "" {
		patch.Category = &v
		hasUpdates = true
	}
	if v := req.GetString("source", ""); v != "" {
		patch.Source = &v
		hasUpdates = true
	}
	if !hasUpdates {
		return mcp.NewToolResultError("at least one field to update is required"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	m, err := store.Update(id, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update memory: %v", err)), nil
	}
	if m == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory %s updated (%s)\n%s",
		m.ID, m.Category, memory.Truncate(m.Content, snippetLength))), nil
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the memory_delete MCP tool.
type DeleteTool struct {
	deps Deps
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(deps Deps) *DeleteTool {
	return &DeleteTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_delete",
		mcp.WithDescription(
			"Delete a memory by ID. Tags and links pointing at it are removed as well.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory ID to delete"),
		),
	)
}

// Handle processes the memory_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	deleted, err := store.Delete(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete memory: %v", err)), nil
	}
	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory %s deleted", id)), nil
}

// ─── RefreshTool ────────────────────────────────────────────────────────────

// RefreshTool handles the memory_refresh MCP tool.
type RefreshTool struct {
	deps Deps
}

// NewRefreshTool creates a RefreshTool.
func NewRefreshTool(deps Deps) *RefreshTool {
	return &RefreshTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_refresh.
func (t *RefreshTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_refresh",
		mcp.WithDescription(
			"Mark a memory as still relevant. Boosts its access count so ranking keeps it near the top.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory ID to refresh"),
		),
	)
}

// Handle processes the memory_refresh tool call.
func (t *RefreshTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	m, err := store.Refresh(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to refresh memory: %v", err)), nil
	}
	if m == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory %s refreshed (accessed %d times)\n%s",
		m.ID, m.AccessCount, memory.Truncate(m.Content, snippetLength))), nil
}
