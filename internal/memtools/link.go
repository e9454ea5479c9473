package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// LinkTool handles the memory_link MCP tool: link, unlink, list.
type LinkTool struct {
	deps Deps
}

// NewLinkTool creates a LinkTool.
func NewLinkTool(deps Deps) *LinkTool {
	return &LinkTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_link.
func (t *LinkTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_link",
		mcp.WithDescription(
			"Connect two memories with a typed relationship, remove a connection, "+
				"or list everything a memory is connected to.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("What to do"),
			mcp.Enum("link", "unlink", "list"),
		),
		mcp.WithString("source_id",
			mcp.Description("Source memory ID (required for link, unlink; the queried ID for list)"),
		),
		mcp.WithString("target_id",
			mcp.Description("Target memory ID (required for link, unlink)"),
		),
		mcp.WithString("relationship",
			mcp.Description("Edge kind for link (default: related)"),
			mcp.Enum(memory.RelRelated, memory.RelSupersedes, memory.RelContradicts, memory.RelExtends),
		),
	)
}

// Handle processes the memory_link tool call.
func (t *LinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")
	sourceID := req.GetString("source_id", "")
	targetID := req.GetString("target_id", "")

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	switch action {
	case "link":
		if sourceID == "" || targetID == "" {
			return mcp.NewToolResultError("'source_id' and 'target_id' are required"), nil
		}
		relationship := req.GetString("relationship", memory.RelRelated)
		linked, err := store.AddLink(sourceID, targetID, relationship)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to link: %v", err)), nil
		}
		if !linked {
			return mcp.NewToolResultError(
				"link refused: both ids must exist, differ, and the relationship must be one of related, supersedes, contradicts, extends"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Linked %s -[%s]-> %s", sourceID, relationship, targetID)), nil

	case "unlink":
		if sourceID == "" || targetID == "" {
			return mcp.NewToolResultError("'source_id' and 'target_id' are required"), nil
		}
		removed, err := store.RemoveLink(sourceID, targetID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to unlink: %v", err)), nil
		}
		if !removed {
			return mcp.NewToolResultText(fmt.Sprintf("No link from %s to %s", sourceID, targetID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Unlinked %s from %s", sourceID, targetID)), nil

	case "list":
		id := sourceID
		if id == "" {
			id = req.GetString("id", "")
		}
		if id == "" {
			return mcp.NewToolResultError("'source_id' is required"), nil
		}
		links, err := store.LinksFor(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list links: %v", err)), nil
		}
		if links == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
		}
		if len(links) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("Memory %s has no links.", id)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d links for %s:\n\n", len(links), id)
		for _, l := range links {
			arrow := "->"
			if l.Direction == "in" {
				arrow = "<-"
			}
			fmt.Fprintf(&b, "%s [%s] %s (%s)\n    %s\n",
				arrow, l.Relationship, l.Memory.ID, l.Memory.Category,
				memory.Truncate(l.Memory.Content, 120))
		}
		return mcp.NewToolResultText(b.String()), nil

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q (expected link, unlink, list)", action)), nil
	}
}
