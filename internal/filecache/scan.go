package filecache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// scanFiles is the canonical project metadata set read on startup. The
// list is deliberately short; the scan primes the store, it does not
// index the repository.
var scanFiles = []string{
	"README.md",
	"CONTRIBUTING.md",
	"ARCHITECTURE.md",
	"package.json",
	"go.mod",
	"Cargo.toml",
	"pyproject.toml",
	".editorconfig",
}

const (
	maxScanFileSize = 50 * 1024
	maxChunks       = 5
	maxChunkChars   = 400
	maxListedNames  = 10
)

// ScanOnStartup reads the canonical metadata files under dir and
// upserts one condensed memory per file. Files already scanned this
// process run, still fresh in the store, missing, oversized, or
// unreadable are skipped without error. Returns how many memories were
// written.
func (c *Cache) ScanOnStartup(dir, projectID string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("filecache: resolve scan dir: %w", err)
	}

	stored := 0
	for _, name := range scanFiles {
		path := filepath.Join(absDir, name)
		if !c.markSeen(path) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() > maxScanFileSize {
			continue
		}
		if fr, err := c.CheckFreshness(path, projectID); err == nil && fr != nil && fr.Fresh {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Debug("startup scan: skipping unreadable file", "path", path, "error", err)
			continue
		}

		var content string
		if name == "package.json" {
			content = summarizePackageJSON(data)
		} else {
			content = condense(string(data))
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		if _, _, err := c.Upsert(path, UpsertParams{
			Content:   content,
			Category:  DefaultCategory,
			Tags:      []string{"startup-scan"},
			Source:    "startup-scan: " + name,
			ProjectID: projectID,
		}); err != nil {
			c.logger.Warn("startup scan: upsert failed", "path", path, "error", err)
			continue
		}
		stored++
	}
	return stored, nil
}

// markSeen records the path in the per-process scan set. Reports true
// the first time a path is offered.
func (c *Cache) markSeen(path string) bool {
	key := strings.ToLower(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	return true
}

// condense reduces a text file to its leading sections: at most
// maxChunks chunks of maxChunkChars characters each, split on headings
// and blank lines.
func condense(text string) string {
	chunks := chunkSections(text)
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	for i, ch := range chunks {
		chunks[i] = truncateChunk(ch)
	}
	return strings.Join(chunks, "\n\n")
}

// chunkSections splits text into sections. A markdown heading starts a
// new chunk; a blank line ends the current one.
func chunkSections(text string) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			chunks = append(chunks, s)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "#") && cur.Len() > 0 {
			flush()
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()
	return chunks
}

func truncateChunk(s string) string {
	runes := []rune(s)
	if len(runes) <= maxChunkChars {
		return s
	}
	return string(runes[:maxChunkChars-3]) + "..."
}

// summarizePackageJSON renders a package manifest as one structured
// line: name, version, description, script names and dependency counts.
// Unparseable manifests fall back to plain section chunking.
func summarizePackageJSON(data []byte) string {
	var pkg struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Description     string            `json:"description"`
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return condense(string(data))
	}

	head := "package.json"
	if pkg.Name != "" {
		head = pkg.Name
		if pkg.Version != "" {
			head += " v" + pkg.Version
		}
	}

	parts := []string{head}
	if pkg.Description != "" {
		parts = append(parts, pkg.Description)
	}
	if len(pkg.Scripts) > 0 {
		parts = append(parts, "scripts: "+sortedNames(pkg.Scripts))
	}
	if len(pkg.Dependencies) > 0 {
		parts = append(parts, fmt.Sprintf("%d dependencies: %s",
			len(pkg.Dependencies), sortedNames(pkg.Dependencies)))
	}
	if len(pkg.DevDependencies) > 0 {
		parts = append(parts, fmt.Sprintf("%d dev dependencies: %s",
			len(pkg.DevDependencies), sortedNames(pkg.DevDependencies)))
	}
	return strings.Join(parts, ". ")
}

func sortedNames(m map[string]string) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) > maxListedNames {
		return strings.Join(names[:maxListedNames], ", ") + ", ..."
	}
	return strings.Join(names, ", ")
}

// ProjectRoot walks up from dir to the nearest directory containing a
// .git marker. Returns dir itself when no repository root is found.
func ProjectRoot(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	cur := abs
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		cur = parent
	}
}
