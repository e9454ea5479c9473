package memory

import (
	"database/sql"
	"fmt"
	"strings"
)

// normalizeTags lowercases and trims tags, dropping empties and
// duplicates while preserving first-seen order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// TagsFor returns a memory's tags in lexical order.
func (s *Store) TagsFor(memoryID string) ([]string, error) {
	rows, err := s.queryItHook(s.db,
		"SELECT tag FROM memory_tags WHERE memory_id = ? ORDER BY tag", memoryID)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// AddTags attaches tags to a memory, ignoring ones already present.
// Returns the full tag list afterwards, or (nil, nil) for unknown ids.
func (s *Store) AddTags(memoryID string, tags []string) ([]string, error) {
	ok, err := s.exists(memoryID)
	if err != nil || !ok {
		return nil, err
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, fmt.Errorf("add tags: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertTags(tx, memoryID, tags); err != nil {
		return nil, err
	}
	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("add tags: commit: %w", err)
	}
	return s.TagsFor(memoryID)
}

// RemoveTags detaches tags from a memory. Unknown tags are ignored.
// Returns the remaining tag list, or (nil, nil) for unknown ids.
func (s *Store) RemoveTags(memoryID string, tags []string) ([]string, error) {
	ok, err := s.exists(memoryID)
	if err != nil || !ok {
		return nil, err
	}

	for _, tag := range normalizeTags(tags) {
		if _, err := s.execHook(s.db,
			"DELETE FROM memory_tags WHERE memory_id = ? AND tag = ?", memoryID, tag); err != nil {
			return nil, fmt.Errorf("remove tag %q: %w", tag, err)
		}
	}
	return s.TagsFor(memoryID)
}

// SetTags replaces a memory's tags wholesale in one transaction.
// Returns the new tag list, or (nil, nil) for unknown ids.
func (s *Store) SetTags(memoryID string, tags []string) ([]string, error) {
	ok, err := s.exists(memoryID)
	if err != nil || !ok {
		return nil, err
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, fmt.Errorf("set tags: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, "DELETE FROM memory_tags WHERE memory_id = ?", memoryID); err != nil {
		return nil, fmt.Errorf("set tags: clear: %w", err)
	}
	if err := s.insertTags(tx, memoryID, tags); err != nil {
		return nil, err
	}
	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("set tags: commit: %w", err)
	}
	return s.TagsFor(memoryID)
}

// AllTags lists every distinct tag with its usage count, most used
// first, ties broken lexically.
func (s *Store) AllTags() ([]TagCount, error) {
	rows, err := s.queryItHook(s.db, `
		SELECT tag, COUNT(*) AS n
		FROM memory_tags
		GROUP BY tag
		ORDER BY n DESC, tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("all tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// SearchByTag returns memories carrying the tag, newest first. An
// empty projectID matches all projects.
func (s *Store) SearchByTag(tag, projectID string, limit int) ([]Memory, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	sqlStr := `
		SELECT ` + qualifiedMemoryColumns + `
		FROM memory m
		JOIN memory_tags t ON t.memory_id = m.id
		WHERE t.tag = ?`
	args := []any{tag}

	if projectID != "" {
		sqlStr += " AND (m.project_id = ? OR m.project_id IS NULL)"
		args = append(args, projectID)
	}

	sqlStr += " ORDER BY m.time_created DESC LIMIT ?"
	args = append(args, limit)

	return s.queryMemories(sqlStr, args...)
}

func (s *Store) insertTags(tx *sql.Tx, memoryID string, tags []string) error {
	for _, tag := range normalizeTags(tags) {
		if _, err := s.execHook(tx,
			"INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)", memoryID, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

// exists reports whether a memory row exists.
func (s *Store) exists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM memory WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}
