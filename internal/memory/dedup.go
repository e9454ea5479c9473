package memory

import (
	"math"
	"sort"
	"strings"
)

const (
	dedupScanLimit      = 100
	dedupCandidateLimit = 5
	dedupSimilarity     = 0.6
)

// dupMatch reports a deduplication hit against an existing memory.
type dupMatch struct {
	exact  bool
	memory *Memory
}

// findDuplicate looks for an existing memory duplicating content within
// the project+global scope. Returns nil when nothing matches; lookup
// failures are logged and treated as no duplicate so a flaky index
// never blocks a write.
func (s *Store) findDuplicate(content string, projectID *string) *dupMatch {
	normalized := normalizeContent(content)

	recent, err := s.queryMemories(`
		SELECT `+memoryColumns+` FROM memory
		WHERE (project_id = ? OR project_id IS NULL)
		ORDER BY time_created DESC
		LIMIT ?`,
		derefString(projectID), dedupScanLimit,
	)
	if err != nil {
		s.logger.Warn("dedup recent scan failed", "error", err)
		return nil
	}
	for i := range recent {
		if normalizeContent(recent[i].Content) == normalized {
			return &dupMatch{exact: true, memory: &recent[i]}
		}
	}

	query := distinctiveTokens(content)
	if query == "" {
		return nil
	}

	candidates, err := s.queryMemories(`
		SELECT `+qualifiedMemoryColumns+`
		FROM memory_fts fts
		JOIN memory m ON m.rowid = fts.rowid
		WHERE memory_fts MATCH ? AND (m.project_id = ? OR m.project_id IS NULL)
		ORDER BY fts.rank
		LIMIT ?`,
		query, derefString(projectID), dedupCandidateLimit,
	)
	if err != nil {
		s.logger.Warn("dedup candidate query failed", "query", query, "error", err)
		return nil
	}

	want := wordSet(normalized)
	for i := range candidates {
		have := wordSet(normalizeContent(candidates[i].Content))
		if jaccard(want, have) > dedupSimilarity {
			return &dupMatch{memory: &candidates[i]}
		}
	}
	return nil
}

// normalizeContent lowercases, trims and collapses whitespace runs so
// trivially reformatted content compares equal.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// distinctiveTokens builds the OR query used to fish out near
// duplicates: the longest max(3, ceil(n*0.6)) normalized tokens.
func distinctiveTokens(content string) string {
	toks := strings.Fields(NormalizeQuery(content))
	if len(toks) == 0 {
		return ""
	}

	sort.SliceStable(toks, func(i, j int) bool { return len(toks[i]) > len(toks[j]) })

	keep := int(math.Ceil(float64(len(toks)) * 0.6))
	if keep < 3 {
		keep = 3
	}
	if keep > len(toks) {
		keep = len(toks)
	}

	quoted := make([]string, keep)
	for i := 0; i < keep; i++ {
		quoted[i] = `"` + toks[i] + `"`
	}
	return strings.Join(quoted, " OR ")
}

// wordSet splits normalized content into its multi-character tokens.
func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if len(tok) > 1 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
