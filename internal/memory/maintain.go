package memory

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	metaLastMaintenance = "last_maintenance"
	maintenanceEvery    = 7 * 24 * time.Hour
)

// MaintenanceReport captures one maintenance run. Step failures land in
// the error fields; a run never fails as a whole.
type MaintenanceReport struct {
	Evicted       int64  `json:"evicted"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	OptimizeError string `json:"optimize_error,omitempty"`
	EvictError    string `json:"evict_error,omitempty"`
}

// Optimize asks the FTS engine to merge its index segments.
func (s *Store) Optimize() error {
	if _, err := s.execHook(s.db, "INSERT INTO memory_fts(memory_fts) VALUES('optimize')"); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

// Vacuum reclaims free pages in the database file.
func (s *Store) Vacuum() error {
	if _, err := s.execHook(s.db, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Purge deletes memories older than the given number of days that were
// never accessed. Returns how many rows went away.
func (s *Store) Purge(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, nil
	}

	cutoff := now() - int64(olderThanDays)*86400
	res, err := s.execHook(s.db, `
		DELETE FROM memory
		WHERE time_created < ? AND access_count = 0 AND time_last_accessed IS NULL`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return n, nil
}

// EnforceCap trims the store down to the configured maximum, dropping
// the least accessed rows first and older rows among ties. A zero or
// negative cap disables trimming.
func (s *Store) EnforceCap() (int64, error) {
	capacity := s.cfg.MaxMemories
	if capacity <= 0 {
		return 0, nil
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memory").Scan(&total); err != nil {
		return 0, fmt.Errorf("enforce cap: count: %w", err)
	}
	excess := total - int64(capacity)
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.execHook(s.db, `
		DELETE FROM memory WHERE id IN (
			SELECT id FROM memory ORDER BY access_count ASC, time_created ASC LIMIT ?
		)`, excess)
	if err != nil {
		return 0, fmt.Errorf("enforce cap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("enforce cap: %w", err)
	}
	return n, nil
}

// RunMaintenance optimizes the index, enforces the cap and measures the
// database. Each step fails independently into the report.
func (s *Store) RunMaintenance() *MaintenanceReport {
	rep := &MaintenanceReport{}

	if err := s.Optimize(); err != nil {
		rep.OptimizeError = err.Error()
		s.logger.Warn("maintenance optimize failed", "error", err)
	}

	evicted, err := s.EnforceCap()
	if err != nil {
		rep.EvictError = err.Error()
		s.logger.Warn("maintenance evict failed", "error", err)
	}
	rep.Evicted = evicted

	rep.DBSizeBytes = s.dbSize()
	return rep
}

// MaybeRunMaintenance runs maintenance unless it already ran within the
// last week, then stamps the run. Reports whether it ran.
func (s *Store) MaybeRunMaintenance() (*MaintenanceReport, bool) {
	if stamp, ok, err := s.getMeta(metaLastMaintenance); err != nil {
		s.logger.Warn("maintenance stamp read failed", "error", err)
	} else if ok {
		if t, perr := time.Parse(time.RFC3339, stamp); perr == nil && timeNow().Sub(t) < maintenanceEvery {
			return nil, false
		}
	}

	rep := s.RunMaintenance()
	if err := s.setMeta(metaLastMaintenance, timeNow().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("maintenance stamp write failed", "error", err)
	}
	return rep, true
}

// ─── Metadata ────────────────────────────────────────────────────────────────

func (s *Store) getMeta(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("metadata get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.execHook(s.db, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("metadata set %q: %w", key, err)
	}
	return nil
}
