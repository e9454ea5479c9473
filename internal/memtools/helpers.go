// Package memtools provides the MCP tool handlers for the memory system.
//
// Each tool handler follows the same pattern:
// - A struct with shared dependencies (Deps) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers never return Go errors for bad input or store trouble; every
// failure becomes an mcp.NewToolResultError so the host can show it.
package memtools

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/memory"
)

// Deps carries the dependencies shared by every tool handler.
//
// Store is a lazy resolver. The memory package latches open failures,
// so a poisoned database surfaces here on every call instead of
// crashing the server at startup.
type Deps struct {
	Store     func() (*memory.Store, error)
	Config    *config.Config
	SessionID string // process session id, default provenance for writes
	Logger    *slog.Logger
}

// resolve fetches the store or renders the unavailable message.
func (d Deps) resolve() (*memory.Store, *mcp.CallToolResult) {
	store, err := d.Store()
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("memory database unavailable: %v", err))
	}
	return store, nil
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// sessionOr falls back to the process session id when the caller did
// not name one.
func (d Deps) sessionOr(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return d.SessionID
}

// defaultScope is "all" unless global memories are disabled, which
// narrows default reads to the project partition.
func (d Deps) defaultScope() string {
	if d.Config != nil && !d.Config.GlobalMemories {
		return memory.ScopeProject
	}
	return memory.ScopeAll
}

// globalsDisabled reports whether global-scoped writes are rejected.
func (d Deps) globalsDisabled() bool {
	return d.Config != nil && !d.Config.GlobalMemories
}

// searchLimit is the configured default result count for searches.
func (d Deps) searchLimit() int {
	if d.Config != nil && d.Config.SearchLimit > 0 {
		return d.Config.SearchLimit
	}
	return memory.DefaultSearchLimit
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitTags parses a comma-separated tag list, dropping empties.
func splitTags(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// snippetLength is how much content the standard detail level shows.
const snippetLength = 300

// projectLabel names the visibility partition of a memory for display.
func projectLabel(m *memory.Memory) string {
	if m.ProjectID == nil {
		return "global"
	}
	return *m.ProjectID
}

// writeMemory renders one memory as a numbered entry at a detail level.
func writeMemory(b *strings.Builder, i int, m *memory.Memory, level string) {
	switch level {
	case memory.DetailSummary:
		fmt.Fprintf(b, "[%d] %s | %s | %s | accessed %d\n",
			i+1, m.ID, m.Category, projectLabel(m), m.AccessCount)
	case memory.DetailFull:
		fmt.Fprintf(b, "[%d] %s (%s, %s)\n%s\n", i+1, m.ID, m.Category, projectLabel(m), m.Content)
		if len(m.Tags) > 0 {
			fmt.Fprintf(b, "tags: %s\n", strings.Join(m.Tags, ", "))
		}
		b.WriteString("\n")
	default:
		fmt.Fprintf(b, "[%d] %s (%s, %s)\n    %s\n\n",
			i+1, m.ID, m.Category, projectLabel(m), memory.Truncate(m.Content, snippetLength))
	}
}

// finishReadResponse appends the shared footers for read-heavy tools:
// the summary-mode nudge and the estimated token cost.
func finishReadResponse(text, level string) string {
	if level == memory.DetailSummary {
		text += memory.SummaryFooter
	}
	return text + memory.TokenFooter(memory.EstimateTokens(text))
}
