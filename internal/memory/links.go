package memory

import (
	"fmt"
	"strings"
)

// Relationship kinds a link may carry.
const (
	RelRelated     = "related"
	RelSupersedes  = "supersedes"
	RelContradicts = "contradicts"
	RelExtends     = "extends"
)

var validRelationships = map[string]bool{
	RelRelated:     true,
	RelSupersedes:  true,
	RelContradicts: true,
	RelExtends:     true,
}

// Link is a directed edge between two memories.
type Link struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	Relationship string `json:"relationship"`
}

// LinkedMemory is an edge seen from one endpoint with the other
// endpoint materialized. Direction is "out" when the queried memory is
// the source, "in" when it is the target.
type LinkedMemory struct {
	Direction    string `json:"direction"`
	Relationship string `json:"relationship"`
	Memory       Memory `json:"memory"`
}

// AddLink upserts a directed edge. It reports false without error when
// either endpoint is missing, the endpoints are equal, or the
// relationship is not one of the known kinds. Linking the same pair
// again overwrites the relationship.
func (s *Store) AddLink(sourceID, targetID, relationship string) (bool, error) {
	relationship = strings.ToLower(strings.TrimSpace(relationship))
	if !validRelationships[relationship] || sourceID == targetID {
		return false, nil
	}

	for _, id := range []string{sourceID, targetID} {
		ok, err := s.exists(id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	_, err := s.execHook(s.db, `
		INSERT INTO memory_links (source_id, target_id, relationship)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET relationship = excluded.relationship`,
		sourceID, targetID, relationship)
	if err != nil {
		return false, fmt.Errorf("link: %w", err)
	}
	return true, nil
}

// RemoveLink deletes the edge from source to target, reporting whether
// one existed.
func (s *Store) RemoveLink(sourceID, targetID string) (bool, error) {
	res, err := s.execHook(s.db,
		"DELETE FROM memory_links WHERE source_id = ? AND target_id = ?", sourceID, targetID)
	if err != nil {
		return false, fmt.Errorf("unlink: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlink: %w", err)
	}
	return n > 0, nil
}

// LinksFor returns every edge touching the memory, outgoing first, the
// other endpoint materialized. Returns (nil, nil) for unknown ids; a
// linked-to-nothing memory yields an empty non-nil slice.
func (s *Store) LinksFor(memoryID string) ([]LinkedMemory, error) {
	ok, err := s.exists(memoryID)
	if err != nil || !ok {
		return nil, err
	}

	links := []LinkedMemory{}

	out, err := s.queryLinked(`
		SELECT l.relationship, `+qualifiedMemoryColumns+`
		FROM memory_links l
		JOIN memory m ON m.id = l.target_id
		WHERE l.source_id = ?
		ORDER BY m.time_created DESC`, "out", memoryID)
	if err != nil {
		return nil, err
	}
	links = append(links, out...)

	in, err := s.queryLinked(`
		SELECT l.relationship, `+qualifiedMemoryColumns+`
		FROM memory_links l
		JOIN memory m ON m.id = l.source_id
		WHERE l.target_id = ?
		ORDER BY m.time_created DESC`, "in", memoryID)
	if err != nil {
		return nil, err
	}
	links = append(links, in...)

	return links, nil
}

func (s *Store) queryLinked(query, direction, memoryID string) ([]LinkedMemory, error) {
	rows, err := s.queryItHook(s.db, query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []LinkedMemory
	for rows.Next() {
		lm := LinkedMemory{Direction: direction}
		if err := rows.Scan(
			&lm.Relationship,
			&lm.Memory.ID, &lm.Memory.Content, &lm.Memory.Category,
			&lm.Memory.SessionID, &lm.Memory.ProjectID, &lm.Memory.Source,
			&lm.Memory.TimeCreated, &lm.Memory.TimeUpdated,
			&lm.Memory.AccessCount, &lm.Memory.TimeLastAccessed,
		); err != nil {
			return nil, err
		}
		links = append(links, lm)
	}
	return links, rows.Err()
}
