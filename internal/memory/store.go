package memory

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Ranking and search defaults.
const (
	DefaultDecayRate   = 0.0077 // ≈90-day half-life
	DefaultSearchLimit = 10
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. Parent directories are created.
	Path string
	// MaxMemories caps the store for maintenance eviction. 0 = unlimited.
	MaxMemories int
	// DecayRate is the per-day rank decay. 0 selects DefaultDecayRate.
	DecayRate float64
	// SearchLimit is the default result count for Search. 0 selects
	// DefaultSearchLimit.
	SearchLimit int
	// Logger receives degradation warnings. Nil selects slog.Default().
	Logger *slog.Logger
}

func (c Config) decayRate() float64 {
	if c.DecayRate <= 0 {
		return DefaultDecayRate
	}
	return c.DecayRate
}

func (c Config) searchLimit() int {
	if c.SearchLimit <= 0 {
		return DefaultSearchLimit
	}
	return c.SearchLimit
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent memory engine backed by SQLite + FTS5.
type Store struct {
	db     *sql.DB
	cfg    Config
	path   string
	logger *slog.Logger
	hooks  storeHooks
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type sqlRowScanner struct {
	rows *sql.Rows
}

func (r sqlRowScanner) Next() bool             { return r.rows.Next() }
func (r sqlRowScanner) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRowScanner) Err() error             { return r.rows.Err() }
func (r sqlRowScanner) Close() error           { return r.rows.Close() }

// storeHooks lets tests intercept database calls for fault injection.
type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	query   func(db queryer, query string, args ...any) (*sql.Rows, error)
	queryIt func(db queryer, query string, args ...any) (rowScanner, error)
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

func (s *Store) queryItHook(db queryer, query string, args ...any) (rowScanner, error) {
	if s.hooks.queryIt != nil {
		return s.hooks.queryIt(db, query, args...)
	}
	rows, err := s.queryHook(db, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRowScanner{rows: rows}, nil
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a Store at cfg.Path. It creates the parent directory if
// needed, opens SQLite with WAL mode, and applies pending migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("memory: config: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{db: db, cfg: cfg, path: cfg.Path, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	return s, nil
}

// Close runs the optimizer pragma best-effort and closes the database.
// Safe to call more than once.
func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
		s.logger.Debug("optimize on close failed", "error", err)
	}
	return s.db.Close()
}

// ─── Shared store ────────────────────────────────────────────────────────────

var (
	sharedMu  sync.Mutex
	shared    *Store
	sharedErr error
)

// Shared returns the process-wide store, opening it lazily on first use.
// An open or migration failure is latched: every subsequent call fails
// fast with the original error instead of retrying against a poisoned
// database.
func Shared(cfg Config) (*Store, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedErr != nil {
		return nil, sharedErr
	}
	if shared != nil {
		return shared, nil
	}

	s, err := New(cfg)
	if err != nil {
		sharedErr = err
		return nil, sharedErr
	}
	shared = s
	return shared, nil
}

// CloseShared closes the shared store if one is open. Idempotent.
func CloseShared() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil
	}
	err := shared.Close()
	shared = nil
	return err
}

// resetShared clears the singleton and its latched error.
func resetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
	sharedErr = nil
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

const memoryColumns = `id, content, category, session_id, project_id, source,
	time_created, time_updated, access_count, time_last_accessed`

const qualifiedMemoryColumns = `m.id, m.content, m.category, m.session_id, m.project_id, m.source,
	m.time_created, m.time_updated, m.access_count, m.time_last_accessed`

// Insert validates and stores a new memory. Unless p.Force is set, the
// deduplicator runs first: an exact duplicate returns the existing row
// untouched, a near duplicate absorbs the new content into the existing
// row. The returned outcome reports which path was taken.
func (s *Store) Insert(p StoreParams) (*Memory, InsertOutcome, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, "", ErrContentTooLong
	}

	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = DefaultCategory
	}

	var projectID *string
	if !p.Global {
		projectID = nullableString(strings.TrimSpace(p.ProjectID))
	}

	if !p.Force {
		dup := s.findDuplicate(content, projectID)
		if dup != nil {
			if dup.exact {
				return dup.memory, OutcomeDuplicate, nil
			}
			patch := UpdatePatch{Content: &content}
			if p.Category != "" {
				patch.Category = &category
			}
			if p.Source != "" {
				src := p.Source
				patch.Source = &src
			}
			merged, err := s.Update(dup.memory.ID, patch)
			if err != nil {
				return nil, "", fmt.Errorf("merge near duplicate: %w", err)
			}
			return merged, OutcomeMerged, nil
		}
	}

	id := uuid.NewString()
	ts := now()
	tags := normalizeTags(p.Tags)

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, "", fmt.Errorf("insert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, `
		INSERT INTO memory (id, content, category, session_id, project_id, source, time_created, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, content, category, nullableString(p.SessionID), projectID, nullableString(p.Source), ts, ts,
	); err != nil {
		return nil, "", fmt.Errorf("insert: %w", err)
	}

	for _, tag := range tags {
		if _, err := s.execHook(tx, `
			INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`,
			id, tag,
		); err != nil {
			return nil, "", fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, "", fmt.Errorf("insert: commit: %w", err)
	}

	m := &Memory{
		ID:          id,
		Content:     content,
		Category:    category,
		SessionID:   nullableString(p.SessionID),
		ProjectID:   projectID,
		Source:      nullableString(p.Source),
		TimeCreated: ts,
		TimeUpdated: ts,
		Tags:        tags,
	}
	return m, OutcomeStored, nil
}

// Get returns a memory by id, or (nil, nil) when it does not exist.
func (s *Store) Get(id string) (*Memory, error) {
	row := s.db.QueryRow(`SELECT `+memoryColumns+` FROM memory WHERE id = ?`, id)

	m, err := scanMemoryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	tags, err := s.TagsFor(id)
	if err != nil {
		return nil, err
	}
	m.Tags = tags
	return m, nil
}

// Update applies the non-nil fields of patch and bumps time_updated.
// Returns (nil, nil) when the id is unknown. An empty patch returns the
// current row without touching it.
func (s *Store) Update(id string, patch UpdatePatch) (*Memory, error) {
	var sets []string
	var args []any

	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return nil, ErrEmptyContent
		}
		if utf8.RuneCountInString(content) > MaxContentLength {
			return nil, ErrContentTooLong
		}
		sets = append(sets, "content = ?")
		args = append(args, content)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, strings.TrimSpace(*patch.Category))
	}
	if patch.Source != nil {
		sets = append(sets, "source = ?")
		args = append(args, nullableString(*patch.Source))
	}

	if len(sets) == 0 {
		return s.Get(id)
	}

	sets = append(sets, "time_updated = ?")
	args = append(args, now(), id)

	res, err := s.execHook(s.db,
		"UPDATE memory SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(id)
}

// Delete removes a memory. Tags and links cascade, the FTS row is
// removed by trigger. Reports whether a row was deleted.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.execHook(s.db, "DELETE FROM memory WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete: rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns memories matching the filters, newest first.
func (s *Store) List(p ListParams) ([]Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	sqlStr := "SELECT " + memoryColumns + " FROM memory WHERE 1=1"
	var args []any

	where, whereArgs := scopeClause(p.Scope, p.ProjectID)
	if where != "" {
		sqlStr += " AND " + where
		args = append(args, whereArgs...)
	}
	if p.Category != "" {
		sqlStr += " AND category = ?"
		args = append(args, p.Category)
	}
	if p.SessionID != "" {
		sqlStr += " AND session_id = ?"
		args = append(args, p.SessionID)
	}

	sqlStr += " ORDER BY time_created DESC LIMIT ?"
	args = append(args, limit)
	if p.Offset > 0 {
		sqlStr += " OFFSET ?"
		args = append(args, p.Offset)
	}

	return s.queryMemories(sqlStr, args...)
}

// Count returns how many memories match the filters, ignoring the
// limit. Pagination hints are built from it.
func (s *Store) Count(p ListParams) (int64, error) {
	sqlStr := "SELECT COUNT(*) FROM memory WHERE 1=1"
	var args []any

	where, whereArgs := scopeClause(p.Scope, p.ProjectID)
	if where != "" {
		sqlStr += " AND " + where
		args = append(args, whereArgs...)
	}
	if p.Category != "" {
		sqlStr += " AND category = ?"
		args = append(args, p.Category)
	}
	if p.SessionID != "" {
		sqlStr += " AND session_id = ?"
		args = append(args, p.SessionID)
	}

	var n int64
	if err := s.db.QueryRow(sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Stats returns aggregate statistics including the database file size.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByCategory: map[string]int64{}}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM memory").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("stats: total: %w", err)
	}

	rows, err := s.queryItHook(s.db,
		"SELECT category, COUNT(*) FROM memory GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("stats: categories: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		stats.ByCategory[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projRows, err := s.queryItHook(s.db, `
		SELECT project_id FROM memory
		WHERE project_id IS NOT NULL
		GROUP BY project_id
		ORDER BY MAX(time_created) DESC`)
	if err != nil {
		return nil, fmt.Errorf("stats: projects: %w", err)
	}
	defer func() { _ = projRows.Close() }()
	for projRows.Next() {
		var proj string
		if err := projRows.Scan(&proj); err != nil {
			return nil, err
		}
		stats.Projects = append(stats.Projects, proj)
	}
	if err := projRows.Err(); err != nil {
		return nil, err
	}

	stats.DBSize = s.dbSize()
	return stats, nil
}

// Refresh marks a memory as deliberately revisited: access_count grows
// by 5 and time_last_accessed is set. Returns (nil, nil) for unknown ids.
func (s *Store) Refresh(id string) (*Memory, error) {
	res, err := s.execHook(s.db, `
		UPDATE memory
		SET access_count = access_count + 5, time_last_accessed = ?
		WHERE id = ?`,
		now(), id)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(id)
}

// ─── Row helpers ─────────────────────────────────────────────────────────────

// scopeClause builds the visibility filter for a scope + project pair.
// An empty fragment means no filter.
func scopeClause(scope, projectID string) (string, []any) {
	switch NormalizeScope(scope) {
	case ScopeProject:
		return "project_id = ?", []any{projectID}
	case ScopeGlobal:
		return "project_id IS NULL", nil
	default:
		if projectID == "" {
			return "", nil
		}
		return "(project_id = ? OR project_id IS NULL)", []any{projectID}
	}
}

type rowLike interface {
	Scan(dest ...any) error
}

func scanMemoryRow(row rowLike) (*Memory, error) {
	var m Memory
	err := row.Scan(
		&m.ID, &m.Content, &m.Category, &m.SessionID, &m.ProjectID, &m.Source,
		&m.TimeCreated, &m.TimeUpdated, &m.AccessCount, &m.TimeLastAccessed,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) queryMemories(query string, args ...any) ([]Memory, error) {
	rows, err := s.queryItHook(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(
			&m.ID, &m.Content, &m.Category, &m.SessionID, &m.ProjectID, &m.Source,
			&m.TimeCreated, &m.TimeUpdated, &m.AccessCount, &m.TimeLastAccessed,
		); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *Store) dbSize() int64 {
	var size int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(s.path + suffix); err == nil {
			size += info.Size()
		}
	}
	return size
}
