package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/memory"
)

// TagTool handles the memory_tag MCP tool, a small dispatcher over the
// tag graph: add, remove, list, list_all, search.
type TagTool struct {
	deps Deps
}

// NewTagTool creates a TagTool.
func NewTagTool(deps Deps) *TagTool {
	return &TagTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_tag.
func (t *TagTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_tag",
		mcp.WithDescription(
			"Work with memory tags: add or remove tags on a memory, list a memory's tags, "+
				"list all tags with usage counts, or find memories carrying a tag.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("What to do"),
			mcp.Enum("add", "remove", "list", "list_all", "search"),
		),
		mcp.WithString("id",
			mcp.Description("Memory ID (required for add, remove, list)"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags (required for add, remove)"),
		),
		mcp.WithString("tag",
			mcp.Description("Single tag to search for (required for search)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project filter for search; global memories are included"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results for search (default: 20)"),
		),
	)
}

// Handle processes the memory_tag tool call.
func (t *TagTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	switch action {
	case "add", "remove":
		id := req.GetString("id", "")
		tags := splitTags(req.GetString("tags", ""))
		if id == "" {
			return mcp.NewToolResultError("'id' is required"), nil
		}
		if len(tags) == 0 {
			return mcp.NewToolResultError("'tags' is required"), nil
		}

		var (
			after []string
			err   error
		)
		if action == "add" {
			after, err = store.AddTags(id, tags)
		} else {
			after, err = store.RemoveTags(id, tags)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to %s tags: %v", action, err)), nil
		}
		if after == nil {
			// Removing every tag also yields nil; tell them apart.
			if m, getErr := store.Get(id); getErr == nil && m != nil {
				return mcp.NewToolResultText(fmt.Sprintf("Tags for %s: (none)", id)), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tags for %s: %s", id, strings.Join(after, ", "))), nil

	case "list":
		id := req.GetString("id", "")
		if id == "" {
			return mcp.NewToolResultError("'id' is required"), nil
		}
		m, err := store.Get(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tags: %v", err)), nil
		}
		if m == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Memory not found: %s", id)), nil
		}
		if len(m.Tags) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("Tags for %s: (none)", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tags for %s: %s", id, strings.Join(m.Tags, ", "))), nil

	case "list_all":
		counts, err := store.AllTags()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tags: %v", err)), nil
		}
		if len(counts) == 0 {
			return mcp.NewToolResultText("No tags stored yet."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d tags in use:\n", len(counts))
		for _, tc := range counts {
			fmt.Fprintf(&b, "- %s (%d)\n", tc.Tag, tc.Count)
		}
		return mcp.NewToolResultText(b.String()), nil

	case "search":
		tag := req.GetString("tag", "")
		if tag == "" {
			return mcp.NewToolResultError("'tag' is required"), nil
		}
		memories, err := store.SearchByTag(tag, req.GetString("project_id", ""), intArg(req, "limit", defaultListLimit))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("tag search failed: %v", err)), nil
		}
		if len(memories) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No memories tagged %q.", tag)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d memories tagged %q:\n\n", len(memories), tag)
		for i := range memories {
			writeMemory(&b, i, &memories[i], memory.DetailStandard)
		}
		return mcp.NewToolResultText(b.String()), nil

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q (expected add, remove, list, list_all, search)", action)), nil
	}
}
