package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// StoreTool handles the memory_store MCP tool.
type StoreTool struct {
	deps Deps
}

// NewStoreTool creates a StoreTool.
func NewStoreTool(deps Deps) *StoreTool {
	return &StoreTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_store.
func (t *StoreTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_store",
		mcp.WithDescription(
			"Store an important fact in persistent memory. Call this PROACTIVELY after learning something "+
				"worth keeping: decisions, conventions, gotchas, debugging insights. Near-duplicates are "+
				"merged automatically unless force is set.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The fact to remember, ideally one self-contained statement"),
		),
		mcp.WithString("category",
			mcp.Description("Category: decision, pattern, debugging, preference, convention, discovery, anti-pattern, general (default: general)"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags for later retrieval"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to attribute the memory to (default: current process session)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project the memory belongs to"),
		),
		mcp.WithString("source",
			mcp.Description("Where the fact came from (tool name, file, conversation)"),
		),
		mcp.WithBoolean("global",
			mcp.Description("Store without a project so every project sees it"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Skip duplicate detection and always write a new memory"),
		),
	)
}

// Handle processes the memory_store tool call.
func (t *StoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	global := boolArg(req, "global", false)
	if global && t.deps.globalsDisabled() {
		return mcp.NewToolResultError("global memories are disabled by configuration"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	m, outcome, err := store.Insert(memory.StoreParams{
		Content:   content,
		Category:  req.GetString("category", ""),
		SessionID: t.deps.sessionOr(req.GetString("session_id", "")),
		ProjectID: req.GetString("project_id", ""),
		Source:    req.GetString("source", ""),
		Tags:      splitTags(req.GetString("tags", "")),
		Global:    global,
		Force:     boolArg(req, "force", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store memory: %v", err)), nil
	}

	var response string
	switch outcome {
	case memory.OutcomeDuplicate:
		response = fmt.Sprintf("Duplicate of an existing memory; nothing new stored.\nID: %s", m.ID)
	case memory.OutcomeMerged:
		response = fmt.Sprintf("Merged into a similar existing memory; its content now covers both.\nID: %s", m.ID)
	default:
		response = fmt.Sprintf("Memory stored (%s)\nID: %s", m.Category, m.ID)
	}
	return mcp.NewToolResultText(response), nil
}
