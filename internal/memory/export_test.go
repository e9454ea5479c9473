package memory

import (
	"database/sql"
	"strings"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// DownTo exposes schema rollback for the migration tests.
func (s *Store) DownTo(version int) error {
	return s.downTo(version)
}

// ResetShared clears the process-wide singleton between tests.
func ResetShared() {
	resetShared()
}

// SetTimeNow substitutes the clock and returns a restore func.
func SetTimeNow(f func() time.Time) func() {
	old := timeNow
	timeNow = f
	return func() { timeNow = old }
}

// FailExecContaining makes every Exec whose SQL contains substr return
// err, for exercising degradation paths.
func (s *Store) FailExecContaining(substr string, err error) {
	s.hooks.exec = func(db execer, query string, args ...any) (sql.Result, error) {
		if strings.Contains(query, substr) {
			return nil, err
		}
		return db.Exec(query, args...)
	}
}

// Unexported helpers under test.
var (
	NormalizeContent  = normalizeContent
	DistinctiveTokens = distinctiveTokens
	WordSet           = wordSet
	Jaccard           = jaccard
	FinalRank         = finalRank
	FTSQuery          = ftsQuery
)
