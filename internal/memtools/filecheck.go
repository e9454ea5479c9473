package memtools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/filecache"
)

// FileCheckTool handles the memory_file_check MCP tool.
//
// The file cache wraps the store, so it is built on first use through
// the same lazy resolver every other tool goes through.
type FileCheckTool struct {
	deps  Deps
	once  sync.Once
	cache *filecache.Cache
	err   error
}

// NewFileCheckTool creates a FileCheckTool.
func NewFileCheckTool(deps Deps) *FileCheckTool {
	return &FileCheckTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_file_check.
func (t *FileCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_file_check",
		mcp.WithDescription(
			"Check whether stored knowledge about a file is still fresh before re-reading it. "+
				"Pass content to store or replace the file's knowledge; the file's current "+
				"fingerprint is recorded alongside.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path (absolute or relative to the working directory)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project the file belongs to"),
		),
		mcp.WithString("content",
			mcp.Description("Knowledge about the file to store; omit to only check freshness"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated extra tags for the stored knowledge"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to attribute the write to (default: current process session)"),
		),
		mcp.WithString("source",
			mcp.Description("Where the knowledge came from"),
		),
	)
}

func (t *FileCheckTool) resolveCache() (*filecache.Cache, *mcp.CallToolResult) {
	t.once.Do(func() {
		store, err := t.deps.Store()
		if err != nil {
			t.err = err
			return
		}
		t.cache = filecache.New(store, t.deps.logger())
	})
	if t.err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("memory database unavailable: %v", t.err))
	}
	return t.cache, nil
}

// Handle processes the memory_file_check tool call.
func (t *FileCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}

	cache, fail := t.resolveCache()
	if fail != nil {
		return fail, nil
	}

	projectID := req.GetString("project_id", "")

	if content := req.GetString("content", ""); content != "" {
		m, created, err := cache.Upsert(path, filecache.UpsertParams{
			Content:   content,
			Tags:      splitTags(req.GetString("tags", "")),
			Source:    req.GetString("source", ""),
			SessionID: t.deps.sessionOr(req.GetString("session_id", "")),
			ProjectID: projectID,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to store file knowledge: %v", err)), nil
		}
		verb := "Updated"
		if created {
			verb = "Stored"
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s knowledge for %s\nID: %s", verb, path, m.ID)), nil
	}

	fr, err := cache.CheckFreshness(path, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("freshness check failed: %v", err)), nil
	}
	if fr == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No stored knowledge for %s", path)), nil
	}
	if fr.Fresh {
		return mcp.NewToolResultText(fmt.Sprintf(
			"File is unchanged since its knowledge was stored.\nID: %s\n\n%s",
			fr.MemoryID, fr.StoredContent)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"File has changed since its knowledge was stored. Re-read it and store fresh knowledge.\nID: %s\n\nPreviously stored:\n%s",
		fr.MemoryID, fr.StoredContent)), nil
}
