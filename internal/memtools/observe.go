package memtools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/mistakes"
)

// ObserveTool handles the memory_observe MCP tool. Hosts feed it raw
// tool output; failures worth remembering become anti-pattern memories.
type ObserveTool struct {
	deps Deps
	once sync.Once
	ext  *mistakes.Extractor
	err  error
}

// NewObserveTool creates an ObserveTool.
func NewObserveTool(deps Deps) *ObserveTool {
	return &ObserveTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_observe.
func (t *ObserveTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_observe",
		mcp.WithDescription(
			"Feed tool output through the mistake extractor. Failed commands, test failures, "+
				"and compile errors are recorded as anti-pattern memories so they are not repeated. "+
				"Clean output records nothing.",
		),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool that produced the output (e.g. bash, pytest)"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("The raw output to scan"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session the output belongs to (default: current process session)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project the output belongs to"),
		),
	)
}

func (t *ObserveTool) resolveExtractor() (*mistakes.Extractor, *mcp.CallToolResult) {
	t.once.Do(func() {
		store, err := t.deps.Store()
		if err != nil {
			t.err = err
			return
		}
		t.ext = mistakes.New(mistakes.Config{Store: store, Logger: t.deps.logger()})
	})
	if t.err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("memory database unavailable: %v", t.err))
	}
	return t.ext, nil
}

// Handle processes the memory_observe tool call.
func (t *ObserveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName := req.GetString("tool_name", "")
	output := req.GetString("output", "")
	if toolName == "" {
		return mcp.NewToolResultError("'tool_name' is required"), nil
	}
	if output == "" {
		return mcp.NewToolResultError("'output' is required"), nil
	}

	if t.deps.Config != nil && !t.deps.Config.AutoExtract {
		return mcp.NewToolResultText("Mistake extraction is disabled (auto_extract: false)."), nil
	}

	ext, fail := t.resolveExtractor()
	if fail != nil {
		return fail, nil
	}

	sessionID := t.deps.sessionOr(req.GetString("session_id", ""))
	stored, err := ext.Extract(toolName, output, sessionID, req.GetString("project_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("mistake extraction failed: %v", err)), nil
	}
	if !stored {
		return mcp.NewToolResultText("No new mistakes recorded."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Recorded an anti-pattern from %s output (%d more this session).",
		toolName, ext.Remaining(sessionID))), nil
}
