// Package resources implements the MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (engram://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/memory"
)

// Handler manages the resource endpoints.
//
// store is the same lazy resolver the tools use, so a poisoned database
// yields an error resource instead of a dead server.
type Handler struct {
	store func() (*memory.Store, error)
	cfg   *config.Config
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store func() (*memory.Store, error), cfg *config.Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// StatsResource returns the MCP resource definition for store statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"engram://stats",
		"Memory Store Statistics",
		mcp.WithResourceDescription("Totals, per-category counts, known projects, database size, and schema version"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current store statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	store, err := h.store()
	if err != nil {
		return errorResource(req.Params.URI, fmt.Sprintf("memory database unavailable: %v", err)), nil
	}

	stats, err := store.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	schema, err := store.SchemaVersion()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	doc := struct {
		*memory.Stats
		SchemaVersion int `json:"schema_version"`
	}{stats, schema}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling stats: %w", err)
	}
	return jsonResource(req.Params.URI, data), nil
}

// CategoriesResource returns the MCP resource definition for the
// configured category set.
func (h *Handler) CategoriesResource() mcp.Resource {
	return mcp.NewResource(
		"engram://categories",
		"Memory Categories",
		mcp.WithResourceDescription("The category names this store organizes memories under"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleCategories returns the configured categories as JSON.
func (h *Handler) HandleCategories(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	categories := config.DefaultCategories()
	if h.cfg != nil && len(h.cfg.Categories) > 0 {
		categories = h.cfg.Categories
	}

	data, err := json.MarshalIndent(map[string][]string{"categories": categories}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling categories: %w", err)
	}
	return jsonResource(req.Params.URI, data), nil
}
