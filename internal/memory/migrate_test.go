package memory_test

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/engramdev/engram/internal/memory"
)

func TestMigrate_FreshStoreReachesLatest(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion error: %v", err)
	}
	if v != 6 {
		t.Errorf("schema version = %d, want 6", v)
	}

	var applied int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied != 6 {
		t.Errorf("applied migrations = %d, want 6", applied)
	}
}

func TestMigrate_SchemaObjectsExist(t *testing.T) {
	s := newTestStore(t)

	objects := []struct {
		kind, name string
	}{
		{"table", "memory"},
		{"table", "memory_fts"},
		{"table", "memory_tags"},
		{"table", "memory_links"},
		{"table", "metadata"},
		{"trigger", "memory_fts_insert"},
		{"trigger", "memory_fts_delete"},
		{"trigger", "memory_fts_update"},
		{"index", "idx_memory_project_category"},
		{"index", "idx_memory_time_created"},
		{"index", "idx_memory_access_count"},
	}
	for _, obj := range objects {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = ? AND name = ?",
			obj.kind, obj.name,
		).Scan(&name)
		if err == sql.ErrNoRows {
			t.Errorf("%s %q missing", obj.kind, obj.name)
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestMigrate_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engram.db")
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s1, err := memory.New(memory.Config{Path: path, Logger: quiet})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := memory.New(memory.Config{Path: path, Logger: quiet})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	v, err := s2.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 6 {
		t.Errorf("schema version after reopen = %d, want 6", v)
	}
}

func TestMigrate_DownToAndBackUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engram.db")
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s1, err := memory.New(memory.Config{Path: path, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}

	if err := s1.DownTo(4); err != nil {
		t.Fatalf("DownTo(4) error: %v", err)
	}
	v, err := s1.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 4 {
		t.Errorf("schema version after rollback = %d, want 4", v)
	}
	if _, err := s1.DB().Exec("SELECT * FROM metadata"); err == nil {
		t.Error("metadata table should be gone at v4")
	}
	s1.Close()

	// Reopening replays the missing migrations.
	s2, err := memory.New(memory.Config{Path: path, Logger: quiet})
	if err != nil {
		t.Fatalf("reopen after rollback: %v", err)
	}
	defer s2.Close()

	v, err = s2.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 6 {
		t.Errorf("schema version after replay = %d, want 6", v)
	}
	if _, err := s2.DB().Exec("INSERT INTO metadata (key, value) VALUES ('probe', 'ok')"); err != nil {
		t.Errorf("metadata table unusable after replay: %v", err)
	}
}

func TestMigrate_FTSStaysInLockstep(t *testing.T) {
	s := newTestStore(t)
	m := mustInsert(t, s, memory.StoreParams{Content: "lockstep verification payload"})

	var hits int
	err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM memory_fts WHERE memory_fts MATCH '"lockstep"'`).Scan(&hits)
	if err != nil {
		t.Fatalf("direct FTS probe: %v", err)
	}
	if hits != 1 {
		t.Errorf("index rows after insert = %d, want 1", hits)
	}

	content := "replacement verification payload"
	if _, err := s.Update(m.ID, memory.UpdatePatch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM memory_fts WHERE memory_fts MATCH '"lockstep"'`).Scan(&hits); err != nil {
		t.Fatal(err)
	}
	if hits != 0 {
		t.Errorf("stale index rows after update = %d, want 0", hits)
	}

	if _, err := s.Delete(m.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM memory_fts WHERE memory_fts MATCH '"replacement"'`).Scan(&hits); err != nil {
		t.Fatal(err)
	}
	if hits != 0 {
		t.Errorf("index rows after delete = %d, want 0", hits)
	}
}
