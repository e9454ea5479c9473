// Package filecache keeps at most one live memory per absolute file
// path. Each path memory carries a fingerprint of the last-seen content
// in reserved tags, so callers can ask "has this file changed since I
// last read it" without re-reading anything.
package filecache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/engramdev/engram/internal/memory"
)

// Reserved tag prefixes encoding the fingerprint. Everything else on a
// path memory is an ordinary caller tag.
const (
	tagPathPrefix  = "filepath:"
	tagGitPrefix   = "git:"
	tagMtimePrefix = "mtime:"
)

// gitTimeout bounds the version-control subprocess. A hung git must
// never stall a tool call.
const gitTimeout = 3 * time.Second

// DefaultCategory is assigned to path memories created by Upsert.
const DefaultCategory = "discovery"

// Cache is the file knowledge layer over a memory store.
type Cache struct {
	store  *memory.Store
	logger *slog.Logger

	// hashFile resolves the version-control content hash for a path,
	// returning "" on any failure. Swappable for tests.
	hashFile func(path string) string

	mu   sync.Mutex
	seen map[string]bool // paths already scanned this process run
}

// New creates a Cache over the given store.
func New(store *memory.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:    store,
		logger:   logger,
		hashFile: gitHashObject,
		seen:     make(map[string]bool),
	}
}

// Freshness is the result of comparing a file against its stored
// fingerprint.
type Freshness struct {
	Fresh         bool   `json:"fresh"`
	MemoryID      string `json:"memory_id"`
	StoredContent string `json:"stored_content"`
}

// CheckFreshness compares the file's current fingerprint against the
// stored one. Returns (nil, nil) when no memory exists for the path.
//
// Matching git hashes on both sides decide freshness outright. Without
// hashes, modification times within a second of each other count as
// fresh. Anything else is stale.
func (c *Cache) CheckFreshness(path, projectID string) (*Freshness, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filecache: resolve path: %w", err)
	}

	existing, err := c.find(abs, projectID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	tags, err := c.store.TagsFor(existing.ID)
	if err != nil {
		return nil, err
	}
	storedGit, storedMtime := parseFingerprint(tags)
	curGit := c.hashFile(abs)
	curMtime := mtimeMillis(abs)

	fresh := false
	switch {
	case curGit != "" && storedGit != "":
		fresh = curGit == storedGit
	case curMtime > 0 && storedMtime > 0:
		delta := curMtime - storedMtime
		if delta < 0 {
			delta = -delta
		}
		fresh = delta < 1000
	}

	return &Freshness{
		Fresh:         fresh,
		MemoryID:      existing.ID,
		StoredContent: existing.Content,
	}, nil
}

// UpsertParams holds the caller-supplied fields for a path memory.
type UpsertParams struct {
	Content   string
	Category  string // empty selects "discovery"
	Tags      []string
	Source    string
	SessionID string
	ProjectID string
}

// Upsert writes file knowledge for a path. An existing path memory is
// updated in place: content and source replaced, fingerprint tags
// regenerated, every other tag preserved. Otherwise a new memory is
// inserted with duplicate detection bypassed, since two files may well
// hold near-identical content. Reports whether a new memory was created.
func (c *Cache) Upsert(path string, p UpsertParams) (*memory.Memory, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("filecache: resolve path: %w", err)
	}

	fpTags := c.fingerprintTags(abs)

	existing, err := c.find(abs, p.ProjectID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		patch := memory.UpdatePatch{Content: &p.Content}
		if p.Source != "" {
			src := p.Source
			patch.Source = &src
		}
		updated, err := c.store.Update(existing.ID, patch)
		if err != nil {
			return nil, false, fmt.Errorf("filecache: update %s: %w", abs, err)
		}
		if updated == nil {
			return nil, false, fmt.Errorf("filecache: memory %s vanished mid-upsert", existing.ID)
		}

		oldTags, err := c.store.TagsFor(existing.ID)
		if err != nil {
			return nil, false, err
		}
		merged := fpTags
		for _, t := range oldTags {
			if !isFingerprintTag(t) {
				merged = append(merged, t)
			}
		}
		merged = append(merged, p.Tags...)
		if _, err := c.store.SetTags(existing.ID, merged); err != nil {
			return nil, false, fmt.Errorf("filecache: retag %s: %w", abs, err)
		}
		updated.Tags, _ = c.store.TagsFor(existing.ID)
		return updated, false, nil
	}

	category := p.Category
	if category == "" {
		category = DefaultCategory
	}
	m, _, err := c.store.Insert(memory.StoreParams{
		Content:   p.Content,
		Category:  category,
		SessionID: p.SessionID,
		ProjectID: p.ProjectID,
		Source:    p.Source,
		Tags:      append(fpTags, p.Tags...),
		Force:     true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("filecache: insert %s: %w", abs, err)
	}
	return m, true, nil
}

// find looks up the single memory carrying the path's filepath: tag.
func (c *Cache) find(abs, projectID string) (*memory.Memory, error) {
	hits, err := c.store.SearchByTag(pathTag(abs), projectID, 1)
	if err != nil {
		return nil, fmt.Errorf("filecache: lookup %s: %w", abs, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

// fingerprintTags builds the reserved tag set for the file's current
// state. Unavailable fingerprint parts are simply omitted.
func (c *Cache) fingerprintTags(abs string) []string {
	tags := []string{pathTag(abs)}
	if hash := c.hashFile(abs); hash != "" {
		tags = append(tags, tagGitPrefix+hash)
	}
	if ms := mtimeMillis(abs); ms > 0 {
		tags = append(tags, tagMtimePrefix+strconv.FormatInt(ms, 10))
	}
	return tags
}

func pathTag(abs string) string {
	return tagPathPrefix + strings.ToLower(abs)
}

func isFingerprintTag(tag string) bool {
	return strings.HasPrefix(tag, tagPathPrefix) ||
		strings.HasPrefix(tag, tagGitPrefix) ||
		strings.HasPrefix(tag, tagMtimePrefix)
}

// parseFingerprint extracts the stored git hash and mtime from a path
// memory's tags. Missing parts come back as "" and 0.
func parseFingerprint(tags []string) (gitHash string, mtimeMS int64) {
	for _, t := range tags {
		switch {
		case strings.HasPrefix(t, tagGitPrefix):
			gitHash = strings.TrimPrefix(t, tagGitPrefix)
		case strings.HasPrefix(t, tagMtimePrefix):
			ms, err := strconv.ParseInt(strings.TrimPrefix(t, tagMtimePrefix), 10, 64)
			if err == nil {
				mtimeMS = ms
			}
		}
	}
	return gitHash, mtimeMS
}

// mtimeMillis returns the file's modification time in milliseconds, or
// 0 when the file cannot be inspected.
func mtimeMillis(abs string) int64 {
	info, err := os.Stat(abs)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}

// gitHashObject asks git for the blob hash of the file's current
// content. Returns "" when git is missing, slow, or unhappy; the
// fingerprint then degrades to mtime comparison.
func gitHashObject(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "hash-object", "--", filepath.Base(path))
	cmd.Dir = filepath.Dir(path)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
