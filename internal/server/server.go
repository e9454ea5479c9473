// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it builds the shared store resolver and
// injects it into the tools, prompts, and resources that depend on it.
// No business logic lives here — only wiring.
package server

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/memory"
	"github.com/engramdev/engram/internal/memtools"
	"github.com/engramdev/engram/internal/prompts"
	"github.com/engramdev/engram/internal/resources"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The database is NOT opened here: every handler resolves the store
// lazily through the shared singleton, so an open or migration failure
// surfaces as a per-call error message instead of a dead server.
//
// The returned cleanup function closes the shared store and must be
// called on shutdown (typically via defer). It is always non-nil and
// safe to call even if the store never opened.
func New(cfg *config.Config, sessionID string, logger *slog.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	storeCfg := memory.Config{
		Path:        cfg.DBPath,
		MaxMemories: cfg.MaxMemories,
		SearchLimit: cfg.SearchLimit,
		Logger:      logger,
	}
	resolve := func() (*memory.Store, error) { return memory.Shared(storeCfg) }

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"engram",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	deps := memtools.Deps{
		Store:     resolve,
		Config:    cfg,
		SessionID: sessionID,
		Logger:    logger,
	}

	// --- Register memory tools ---

	storeTool := memtools.NewStoreTool(deps)
	s.AddTool(storeTool.Definition(), storeTool.Handle)

	searchTool := memtools.NewSearchTool(deps)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	listTool := memtools.NewListTool(deps)
	s.AddTool(listTool.Definition(), listTool.Handle)

	statsTool := memtools.NewStatsTool(deps)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	// --- Management ---

	updateTool := memtools.NewUpdateTool(deps)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	deleteTool := memtools.NewDeleteTool(deps)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	refreshTool := memtools.NewRefreshTool(deps)
	s.AddTool(refreshTool.Definition(), refreshTool.Handle)

	// --- Knowledge graph ---

	tagTool := memtools.NewTagTool(deps)
	s.AddTool(tagTool.Definition(), tagTool.Handle)

	linkTool := memtools.NewLinkTool(deps)
	s.AddTool(linkTool.Definition(), linkTool.Handle)

	// --- Maintenance & transfer ---

	cleanupTool := memtools.NewCleanupTool(deps)
	s.AddTool(cleanupTool.Definition(), cleanupTool.Handle)

	exportTool := memtools.NewExportTool(deps)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	importTool := memtools.NewImportTool(deps)
	s.AddTool(importTool.Definition(), importTool.Handle)

	// --- File knowledge ---

	fileCheckTool := memtools.NewFileCheckTool(deps)
	s.AddTool(fileCheckTool.Definition(), fileCheckTool.Handle)

	// --- Context reduction ---

	observeTool := memtools.NewObserveTool(deps)
	s.AddTool(observeTool.Definition(), observeTool.Handle)

	reduceTool := memtools.NewReduceTool(deps)
	s.AddTool(reduceTool.Definition(), reduceTool.Handle)

	// --- Register prompts ---
	//
	// memory-recall only makes sense when auto-recall workflows are
	// wanted; memory-brief is always useful.

	if cfg.AutoRecall {
		recallPrompt := prompts.NewRecallPrompt()
		s.AddPrompt(recallPrompt.Definition(), recallPrompt.Handle)
	}

	briefPrompt := prompts.NewBriefPrompt()
	s.AddPrompt(briefPrompt.Definition(), briefPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(resolve, cfg)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)
	s.AddResource(resourceHandler.CategoriesResource(), resourceHandler.HandleCategories)

	// Warm the store in the background so the first tool call does not
	// pay for migrations, and run scheduled maintenance if it is due.
	go func() {
		store, err := resolve()
		if err != nil {
			logger.Warn("memory store unavailable", "error", err)
			return
		}
		if rep, ran := store.MaybeRunMaintenance(); ran {
			logger.Info("maintenance complete",
				"evicted", rep.Evicted, "db_size_bytes", rep.DBSizeBytes)
		}
	}()

	cleanup := func() {
		if err := memory.CloseShared(); err != nil {
			logger.Warn("memory store close failed", "error", err)
		}
	}
	return s, cleanup, nil
}

// serverInstructions returns the system instructions that tell the AI
// how to use the memory store effectively.
func serverInstructions() string {
	return `You have access to Engram, a persistent per-project memory MCP server.
Memory survives between conversations — use it to build project knowledge over time.

## WHEN TO SAVE (call memory_store PROACTIVELY after each of these)
- Architectural decisions or tradeoffs made
- Bug fixes: what was wrong, why, how it was fixed
- New patterns or conventions established
- Configuration changes or environment setup
- Important discoveries, gotchas, or edge cases

Do NOT save session chatter, file contents, or anything derivable from the
code itself. One memory = one durable fact.

## Content Guidelines
- Keep it short and self-contained; the content IS the searchable record
- Name concrete things: file paths, commands, version numbers
- Pick a category: general, decision, pattern, anti-pattern, convention,
  config, discovery, runbook (your host may configure a different set —
  read the engram://categories resource)
- Tag memories that belong to a theme: tags="auth, jwt"
- Pass project_id so project work stays out of other projects' results;
  use global=true only for facts that apply everywhere

## WHEN TO SEARCH (call memory_search)
- At the start of a new session to recover context
- Before making architectural decisions (check for prior decisions)
- When encountering familiar errors or patterns
- When the user references something from a previous session

Searches rank by match quality, then decay with age and boost by use.
Hitting a memory bumps its access count, which keeps living knowledge
near the top. Use memory_refresh to deliberately pin something relevant.

## Response Size Control (detail_level parameter)
Read-heavy tools (memory_search, memory_list) accept detail_level:
- summary: IDs and metadata only. Use for orientation and triage.
- standard: truncated content snippets. The default; right for most calls.
- full: complete untruncated content, including tags.

When results are capped, responses append a "📊 Showing X of Y" footer —
use limit/offset to page. Every read response ends with a "📏 ~N tokens"
estimate so you can budget your context window.

## Housekeeping
- memory_update / memory_delete fix or remove stale facts
- memory_tag (action=add/remove/list/list_all/search) manages the tag graph
- memory_link (action=link/unlink/list) connects related memories:
  related, supersedes, contradicts, extends. When a new decision replaces
  an old one, store the new memory and link it with supersedes.
- memory_cleanup purges never-accessed old memories and compacts the file
- memory_stats / the engram://stats resource show what the store holds

## File Knowledge (memory_file_check)
Before re-reading a large file you have summarized before, call
memory_file_check with its path. If the file is unchanged you get the
stored knowledge back and can skip the read. After summarizing a file,
call memory_file_check with path AND content to store the summary.

## Failure Capture (memory_observe)
After a command or test run fails, pass the tool name and raw output to
memory_observe. Real failures become anti-pattern memories (budgeted per
session, deduplicated); clean output records nothing.

## Transcript Reduction (memory_reduce)
Hosts that manage their own transcripts can pass the message array to
memory_reduce. Duplicate tool results, superseded writes to the same
file, and stale errors come back annotated with pruned placeholders —
nothing is deleted, and decisions persist per session.

## Transfer
memory_export produces a portable JSON document (optionally one
project); memory_import merges it elsewhere, skipping memories that
already exist and restoring links between imported ones.`
}
