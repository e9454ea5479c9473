package memtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ─── ExportTool ─────────────────────────────────────────────────────────────

// ExportTool handles the memory_export MCP tool.
type ExportTool struct {
	deps Deps
}

// NewExportTool creates an ExportTool.
func NewExportTool(deps Deps) *ExportTool {
	return &ExportTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_export",
		mcp.WithDescription(
			"Export memories as a portable JSON document, including tags and links. "+
				"Feed the output to memory_import on another machine to transfer knowledge.",
		),
		mcp.WithString("project_id",
			mcp.Description("Export only this project's memories (default: everything)"),
		),
	)
}

// Handle processes the memory_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	doc, err := store.Export()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	if project := req.GetString("project_id", ""); project != "" {
		doc.FilterProject(project)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// ─── ImportTool ─────────────────────────────────────────────────────────────

// ImportTool handles the memory_import MCP tool.
type ImportTool struct {
	deps Deps
}

// NewImportTool creates an ImportTool.
func NewImportTool(deps Deps) *ImportTool {
	return &ImportTool{deps: deps}
}

// Definition returns the MCP tool definition for memory_import.
func (t *ImportTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_import",
		mcp.WithDescription(
			"Import a JSON document produced by memory_export. Memories whose id already "+
				"exists are skipped; new ones get fresh ids and links are restored between them.",
		),
		mcp.WithString("data",
			mcp.Required(),
			mcp.Description("The JSON export document"),
		),
	)
}

// Handle processes the memory_import tool call.
func (t *ImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data := req.GetString("data", "")
	if data == "" {
		return mcp.NewToolResultError("'data' is required"), nil
	}

	store, fail := t.deps.resolve()
	if fail != nil {
		return fail, nil
	}

	report, err := store.ImportJSON([]byte(data))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Imported %d memories, skipped %d already present, restored %d links.",
		report.Imported, report.Skipped, report.Links)), nil
}
