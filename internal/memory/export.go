package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExportVersion is the document version Export writes and Import accepts.
const ExportVersion = 1

// ExportedLink is an outgoing edge in an export document.
type ExportedLink struct {
	TargetID     string `json:"target_id"`
	Relationship string `json:"relationship"`
}

// ExportedMemory is one memory in an export document. Session ids are
// deliberately absent: they identify a process on one machine and mean
// nothing after a transfer.
type ExportedMemory struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	Category    string         `json:"category"`
	Source      *string        `json:"source,omitempty"`
	ProjectID   *string        `json:"project_id,omitempty"`
	TimeCreated int64          `json:"time_created"`
	TimeUpdated int64          `json:"time_updated"`
	AccessCount int64          `json:"access_count"`
	Tags        []string       `json:"tags,omitempty"`
	Links       []ExportedLink `json:"links,omitempty"`
}

// ExportDoc is the portable dump of a whole store.
type ExportDoc struct {
	Version    int              `json:"version"`
	ExportedAt string           `json:"exported_at"`
	Memories   []ExportedMemory `json:"memories"`
}

// ImportReport summarizes one Import call.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Links    int `json:"links"`
}

// Export dumps every memory with its tags and outgoing links.
func (s *Store) Export() (*ExportDoc, error) {
	mems, err := s.queryMemories(
		`SELECT ` + memoryColumns + ` FROM memory ORDER BY time_created ASC`)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	tags, err := s.allTagsByMemory()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	links, err := s.allLinksBySource()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	doc := &ExportDoc{
		Version:    ExportVersion,
		ExportedAt: timeNow().UTC().Format(time.RFC3339),
		Memories:   make([]ExportedMemory, 0, len(mems)),
	}
	for _, m := range mems {
		doc.Memories = append(doc.Memories, ExportedMemory{
			ID:          m.ID,
			Content:     m.Content,
			Category:    m.Category,
			Source:      m.Source,
			ProjectID:   m.ProjectID,
			TimeCreated: m.TimeCreated,
			TimeUpdated: m.TimeUpdated,
			AccessCount: m.AccessCount,
			Tags:        tags[m.ID],
			Links:       links[m.ID],
		})
	}
	return doc, nil
}

// ExportJSON renders the export document as indented JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	doc, err := s.Export()
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode: %w", err)
	}
	return out, nil
}

// FilterProject narrows the document to one project's memories. Links
// whose target falls outside the kept set are pruned so the document
// never carries dangling references.
func (d *ExportDoc) FilterProject(projectID string) {
	kept := make([]ExportedMemory, 0, len(d.Memories))
	ids := make(map[string]bool, len(d.Memories))
	for _, em := range d.Memories {
		if em.ProjectID != nil && *em.ProjectID == projectID {
			kept = append(kept, em)
			ids[em.ID] = true
		}
	}
	for i := range kept {
		links := kept[i].Links[:0]
		for _, l := range kept[i].Links {
			if ids[l.TargetID] {
				links = append(links, l)
			}
		}
		kept[i].Links = links
	}
	d.Memories = kept
}

// Import merges an export document into the store inside one
// transaction. Memories whose id already exists are skipped but still
// anchor links; new memories get fresh ids so an import can never
// collide with local rows. Links are restored through the id map, and
// links pointing outside the document are dropped.
func (s *Store) Import(doc *ExportDoc) (*ImportReport, error) {
	if doc == nil {
		return nil, fmt.Errorf("import: nil document")
	}
	if doc.Version != ExportVersion {
		return nil, fmt.Errorf("import: unsupported version %d", doc.Version)
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, fmt.Errorf("import: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report := &ImportReport{}
	idMap := make(map[string]string, len(doc.Memories))

	for _, em := range doc.Memories {
		var one int
		err := tx.QueryRow("SELECT 1 FROM memory WHERE id = ?", em.ID).Scan(&one)
		switch {
		case err == nil:
			idMap[em.ID] = em.ID
			report.Skipped++
			continue
		case err != sql.ErrNoRows:
			return nil, fmt.Errorf("import %s: %w", em.ID, err)
		}

		id := uuid.NewString()
		idMap[em.ID] = id

		if _, err := s.execHook(tx, `
			INSERT INTO memory (id, content, category, session_id, project_id, source,
				time_created, time_updated, access_count)
			VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
			id, em.Content, em.Category, em.ProjectID, em.Source,
			em.TimeCreated, em.TimeUpdated, em.AccessCount,
		); err != nil {
			return nil, fmt.Errorf("import %s: %w", em.ID, err)
		}

		for _, tag := range normalizeTags(em.Tags) {
			if _, err := s.execHook(tx,
				"INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)", id, tag); err != nil {
				return nil, fmt.Errorf("import %s: tag %q: %w", em.ID, tag, err)
			}
		}
		report.Imported++
	}

	for _, em := range doc.Memories {
		source := idMap[em.ID]
		for _, link := range em.Links {
			target, ok := idMap[link.TargetID]
			if !ok || source == target || !validRelationships[link.Relationship] {
				continue
			}
			if _, err := s.execHook(tx, `
				INSERT INTO memory_links (source_id, target_id, relationship)
				VALUES (?, ?, ?)
				ON CONFLICT(source_id, target_id) DO UPDATE SET relationship = excluded.relationship`,
				source, target, link.Relationship,
			); err != nil {
				return nil, fmt.Errorf("import %s: link: %w", em.ID, err)
			}
			report.Links++
		}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("import: commit: %w", err)
	}
	return report, nil
}

// ImportJSON decodes and imports an export document.
func (s *Store) ImportJSON(data []byte) (*ImportReport, error) {
	var doc ExportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("import: decode: %w", err)
	}
	return s.Import(&doc)
}

func (s *Store) allTagsByMemory() (map[string][]string, error) {
	rows, err := s.queryItHook(s.db,
		"SELECT memory_id, tag FROM memory_tags ORDER BY memory_id, tag")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		tags[id] = append(tags[id], tag)
	}
	return tags, rows.Err()
}

func (s *Store) allLinksBySource() (map[string][]ExportedLink, error) {
	rows, err := s.queryItHook(s.db,
		"SELECT source_id, target_id, relationship FROM memory_links ORDER BY source_id, target_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	links := make(map[string][]ExportedLink)
	for rows.Next() {
		var source string
		var link ExportedLink
		if err := rows.Scan(&source, &link.TargetID, &link.Relationship); err != nil {
			return nil, err
		}
		links[source] = append(links[source], link)
	}
	return links, rows.Err()
}
