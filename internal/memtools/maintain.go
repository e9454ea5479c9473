package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// CleanupTool handles the memory_cleanup MCP tool.
type CleanupTool struct {
	deps Deps
}

// NewCleanupTool creates a CleanupTool.
func NewCleanupTool(deps Deps) *CleanupTool {
	return &CleanupTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_cleanup.
func (t *CleanupTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_cleanup",
		mcp.WithDescription(
			"Run store maintenance: optionally purge old never-accessed memories, optionally "+
				"compact the database file, and always optimize the search index and enforce "+
				"the configured memory cap.",
		),
		mcp.WithNumber("purge_days",
			mcp.Description("Delete memories older than this many days that were never accessed (0 = skip)"),
		),
		mcp.WithBoolean("vacuum",
			mcp.Description("Reclaim free database pages after cleanup"),
		),
	)
}

// Handle processes the memory_cleanup tool call.
func (t *CleanupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	var b strings.Builder
	b.WriteString("## Cleanup Report\n\n")

	if days := intArg(req, "purge_days", 0); days > 0 {
		purged, err := store.Purge(days)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("purge failed: %v", err)), nil
		}
		fmt.Fprintf(&b, "- Purged: %d never-accessed memories older than %d days\n", purged, days)
	}

	if boolArg(req, "vacuum", false) {
		if err := store.Vacuum(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("vacuum failed: %v", err)), nil
		}
		b.WriteString("- Vacuum: done\n")
	}

	report := store.RunMaintenance()
	fmt.Fprintf(&b, "- Evicted by cap: %d\n", report.Evicted)
	fmt.Fprintf(&b, "- Database size: %s\n", humanize.Bytes(uint64(report.DBSizeBytes)))
	if report.OptimizeError != "" {
		fmt.Fprintf(&b, "- Optimize error: %s\n", report.OptimizeError)
	}
	if report.EvictError != "" {
		fmt.Fprintf(&b, "- Evict error: %s\n", report.EvictError)
	}

	return mcp.NewToolResultText(b.String()), nil
}
