package memory

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	overFetchFactor = 3
	overFetchCap    = 100
	accessBoostStep = 0.1
)

// SearchParams select and bound a ranked full-text search.
type SearchParams struct {
	Query     string `json:"query"`
	Category  string `json:"category,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchResult carries a matched memory with its FTS base rank and the
// recency/usage adjusted final rank. Both are negative; more negative
// means a better match.
type SearchResult struct {
	Memory
	BaseRank  float64 `json:"base_rank"`
	FinalRank float64 `json:"final_rank"`
}

// Search runs a ranked full-text query. Matches decay with age and are
// boosted by access_count, and every returned row has its access
// counters bumped as a side effect. A query that normalizes to nothing
// falls back to a recent listing for the scope. FTS engine errors are
// logged and produce an empty result, never a failure.
func (s *Store) Search(p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = s.cfg.searchLimit()
	}

	normalized := NormalizeQuery(p.Query)
	if normalized == "" {
		return s.searchRecent(p, limit)
	}

	fetch := limit * overFetchFactor
	if fetch > overFetchCap {
		fetch = overFetchCap
	}

	sqlStr := `
		SELECT ` + qualifiedMemoryColumns + `, fts.rank
		FROM memory_fts fts
		JOIN memory m ON m.rowid = fts.rowid
		WHERE memory_fts MATCH ?`
	args := []any{ftsQuery(normalized)}

	if clause, cargs := scopeClause(p.Scope, p.ProjectID); clause != "" {
		sqlStr += " AND " + clause
		args = append(args, cargs...)
	}
	if p.Category != "" {
		sqlStr += " AND m.category = ?"
		args = append(args, p.Category)
	}

	sqlStr += " ORDER BY fts.rank LIMIT ?"
	args = append(args, fetch)

	rows, err := s.queryItHook(s.db, sqlStr, args...)
	if err != nil {
		s.logger.Warn("search query failed", "query", normalized, "error", err)
		return []SearchResult{}, nil
	}
	defer func() { _ = rows.Close() }()

	ts := now()
	var results []SearchResult
	for rows.Next() {
		var sr SearchResult
		if err := rows.Scan(
			&sr.ID, &sr.Content, &sr.Category, &sr.SessionID, &sr.ProjectID, &sr.Source,
			&sr.TimeCreated, &sr.TimeUpdated, &sr.AccessCount, &sr.TimeLastAccessed,
			&sr.BaseRank,
		); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		sr.FinalRank = finalRank(sr.BaseRank, sr.TimeCreated, sr.AccessCount, ts, s.cfg.decayRate())
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("search iteration failed", "query", normalized, "error", err)
		return []SearchResult{}, nil
	}

	// Stable sort keeps the FTS order for equal final ranks.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalRank < results[j].FinalRank
	})
	if len(results) > limit {
		results = results[:limit]
	}

	s.bumpAccess(results, ts)
	return results, nil
}

// searchRecent is the no-query fallback: newest rows in scope with
// zeroed ranks. Listing is not retrieval, so access counters stay put.
func (s *Store) searchRecent(p SearchParams, limit int) ([]SearchResult, error) {
	mems, err := s.List(ListParams{
		Category:  p.Category,
		ProjectID: p.ProjectID,
		Scope:     p.Scope,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(mems))
	for i := range mems {
		results[i] = SearchResult{Memory: mems[i]}
	}
	return results, nil
}

// finalRank folds recency decay and usage boost into the FTS base rank.
// Ranks are negative: decay in (0,1] shrinks stale rows toward zero
// while the boost pushes well-used rows further negative.
func finalRank(baseRank float64, timeCreated, accessCount, ts int64, decayRate float64) float64 {
	ageDays := float64(ts-timeCreated) / 86400
	if ageDays < 0 {
		ageDays = 0
	}
	decay := 1 / (1 + ageDays*decayRate)
	boost := 1 + math.Log2(1+float64(accessCount))*accessBoostStep
	return baseRank * decay * boost
}

// bumpAccess records that the returned rows were surfaced. Failures are
// logged and swallowed: delivering results matters more than counters.
func (s *Store) bumpAccess(results []SearchResult, ts int64) {
	if len(results) == 0 {
		return
	}

	args := make([]any, 0, len(results)+1)
	args = append(args, ts)
	placeholders := make([]string, len(results))
	for i := range results {
		placeholders[i] = "?"
		args = append(args, results[i].ID)
	}

	_, err := s.execHook(s.db, `
		UPDATE memory
		SET access_count = access_count + 1, time_last_accessed = ?
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		s.logger.Warn("access bump failed", "rows", len(results), "error", err)
	}
}
