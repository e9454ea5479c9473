package memtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/scr"
)

// ReduceTool handles the memory_reduce MCP tool. It never touches the
// database; the pipeline works on the transcript the host sends and
// persists its decisions per session under the data directory.
type ReduceTool struct {
	pipeline *scr.Pipeline
}

// NewReduceTool creates a ReduceTool.
func NewReduceTool(deps Deps) *ReduceTool {
	cfg := scr.Config{Logger: deps.logger()}
	if deps.Config != nil {
		cfg.AutoRecall = deps.Config.AutoRecall
		if deps.Config.DataDir != "" {
			cfg.States = scr.NewFileStateStore(deps.Config.DataDir)
		}
	}
	return &ReduceTool{pipeline: scr.New(cfg)}
}

// reduceResponse is the annotated transcript plus this run's counters.
type reduceResponse struct {
	Messages []scr.Message `json:"messages"`
	Stats    scr.Stats     `json:"stats"`
}

// Definition returns the MCP tool definition for memory_reduce.
func (t *ReduceTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_reduce",
		mcp.WithDescription(
			"Run the context reduction pipeline over a conversation transcript. Duplicate tool "+
				"results, superseded file writes, and stale errors are replaced with short "+
				"placeholders. Returns the annotated transcript as JSON; nothing is deleted.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session the transcript belongs to; pruning decisions persist per session"),
		),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description(`JSON array of messages: {"id","role","content","tool_name","file_path","is_error","turn"}`),
		),
	)
}

// Handle processes the memory_reduce tool call.
func (t *ReduceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	raw := req.GetString("transcript", "")
	if raw == "" {
		return mcp.NewToolResultError("'transcript' is required"), nil
	}

	var messages []scr.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid transcript JSON: %v", err)), nil
	}

	transcript := &scr.Transcript{Messages: messages}
	state, err := t.pipeline.Run(sessionID, transcript)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reduction failed: %v", err)), nil
	}

	out, err := json.MarshalIndent(reduceResponse{
		Messages: transcript.Messages,
		Stats:    state.Stats,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding reduced transcript: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
