// Package memory implements the persistent knowledge store for Engram.
//
// It keeps one SQLite database per data directory, mirrors every row into
// an FTS5 index through triggers, and layers relevance ranking, duplicate
// detection, tagging, linking, and maintenance on top of plain CRUD.
package memory

import (
	"errors"
	"strings"
)

// MaxContentLength is the upper bound for memory content, in runes.
const MaxContentLength = 10000

// DefaultCategory is assigned when a write carries no category.
const DefaultCategory = "general"

// DefaultCategories is the advisory category set. The schema does not
// enforce it; unknown categories are stored as-is.
var DefaultCategories = []string{
	"decision", "pattern", "debugging", "preference",
	"convention", "discovery", "anti-pattern", "general",
}

// Validation errors surfaced to callers. Everything else is wrapped I/O.
var (
	ErrEmptyContent   = errors.New("memory: content is empty")
	ErrContentTooLong = errors.New("memory: content exceeds maximum length")
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Memory is a single stored fact with provenance and access metadata.
// A nil ProjectID marks a global memory, visible from every project.
type Memory struct {
	ID               string   `json:"id"`
	Content          string   `json:"content"`
	Category         string   `json:"category"`
	SessionID        *string  `json:"session_id,omitempty"`
	ProjectID        *string  `json:"project_id"`
	Source           *string  `json:"source,omitempty"`
	TimeCreated      int64    `json:"time_created"`
	TimeUpdated      int64    `json:"time_updated"`
	AccessCount      int64    `json:"access_count"`
	TimeLastAccessed *int64   `json:"time_last_accessed,omitempty"`
	Tags             []string `json:"tags,omitempty"` // populated on single-row reads
}

// Global reports whether the memory is visible from every project.
func (m *Memory) Global() bool {
	return m.ProjectID == nil
}

// StoreParams holds the input for inserting a new memory.
type StoreParams struct {
	Content   string   `json:"content"`
	Category  string   `json:"category,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	Source    string   `json:"source,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Global    bool     `json:"global,omitempty"` // store with project_id = NULL
	Force     bool     `json:"force,omitempty"`  // bypass duplicate detection
}

// InsertOutcome describes how an insert was resolved.
type InsertOutcome string

const (
	OutcomeStored    InsertOutcome = "stored"    // fresh row written
	OutcomeDuplicate InsertOutcome = "duplicate" // exact duplicate, existing row returned
	OutcomeMerged    InsertOutcome = "merged"    // near duplicate, existing row updated
)

// UpdatePatch holds partial update fields. Nil pointers leave the field
// unchanged; this is the "unset means keep" representation.
type UpdatePatch struct {
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
	Source   *string `json:"source,omitempty"`
}

// Scope selects which visibility partition reads observe.
const (
	ScopeProject = "project" // exact project_id match
	ScopeGlobal  = "global"  // project_id IS NULL only
	ScopeAll     = "all"     // project rows plus globals
)

// NormalizeScope maps free-form scope input onto the known set,
// defaulting to "all".
func NormalizeScope(scope string) string {
	switch strings.TrimSpace(strings.ToLower(scope)) {
	case ScopeProject:
		return ScopeProject
	case ScopeGlobal:
		return ScopeGlobal
	default:
		return ScopeAll
	}
}

// ListParams holds filters for listing memories.
type ListParams struct {
	Category  string `json:"category,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Scope     string `json:"scope,omitempty"`  // project | global | all
	Limit     int    `json:"limit,omitempty"`  // default 20
	Offset    int    `json:"offset,omitempty"` // rows to skip, for paging
}

// Stats holds aggregate store statistics.
type Stats struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
	Projects   []string         `json:"projects"`
	DBSize     int64            `json:"db_size_bytes"`
}

// TagCount pairs a tag with the number of memories carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Truncate shortens a string to max runes with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func now() int64 {
	return timeNow().Unix()
}
