package memtools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatsTool handles the memory_stats MCP tool.
type StatsTool struct {
	deps Deps
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(deps Deps) *StatsTool {
	return &StatsTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription(
			"Show memory system statistics — totals, category breakdown, projects tracked, database size.",
		),
	)
}

// Handle processes the memory_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	stats, err := store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Memory Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Memories**: %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("- **Database size**: %s\n", humanize.Bytes(uint64(stats.DBSize))))

	if len(stats.Projects) > 0 {
		sb.WriteString(fmt.Sprintf("- **Projects** (%d): %s\n", len(stats.Projects), strings.Join(stats.Projects, ", ")))
	} else {
		sb.WriteString("- **Projects**: none\n")
	}

	if len(stats.ByCategory) > 0 {
		sb.WriteString("- **By category**:\n")
		cats := make([]string, 0, len(stats.ByCategory))
		for cat := range stats.ByCategory {
			cats = append(cats, cat)
		}
		sort.Slice(cats, func(i, j int) bool {
			if stats.ByCategory[cats[i]] != stats.ByCategory[cats[j]] {
				return stats.ByCategory[cats[i]] > stats.ByCategory[cats[j]]
			}
			return cats[i] < cats[j]
		})
		for _, cat := range cats {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", cat, stats.ByCategory[cat]))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}
