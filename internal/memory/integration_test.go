package memory_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/engramdev/engram/internal/memory"
)

// ─── Full Lifecycle ──────────────────────────────────────────────────────────

func TestIntegration_FullMemoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	advance := pinClock(t, time.Unix(1_700_000_000, 0))

	// A session stores a decision, a convention and a global preference.
	decision := mustInsert(t, s, memory.StoreParams{
		Content:   "store sessions in redis with a day of expiry",
		Category:  "decision",
		SessionID: "sess-1",
		ProjectID: "shop",
		Tags:      []string{"redis", "sessions"},
	})
	advance(time.Minute)
	convention := mustInsert(t, s, memory.StoreParams{
		Content:   "handlers return wrapped errors never panics",
		Category:  "convention",
		SessionID: "sess-1",
		ProjectID: "shop",
	})
	advance(time.Minute)
	preference := mustInsert(t, s, memory.StoreParams{
		Content:   "prefer table driven tests in every package",
		Category:  "preference",
		SessionID: "sess-1",
		Global:    true,
	})

	// Later sessions find and refine them.
	hits, err := s.Search(memory.SearchParams{Query: "redis session expiry", ProjectID: "shop"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].ID != decision.ID {
		t.Fatalf("search did not surface the decision: %d hits", len(hits))
	}

	updated := "store sessions in redis with a week of expiry"
	if _, err := s.Update(decision.ID, memory.UpdatePatch{Content: &updated}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.AddLink(convention.ID, decision.ID, memory.RelRelated); !ok {
		t.Fatal("link refused")
	}
	if _, err := s.Refresh(preference.ID); err != nil {
		t.Fatal(err)
	}

	// Stats reflect the current shape.
	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if len(stats.Projects) != 1 || stats.Projects[0] != "shop" {
		t.Errorf("Projects = %v, want [shop]", stats.Projects)
	}

	// Weekly maintenance runs clean on first call.
	rep, ran := s.MaybeRunMaintenance()
	if !ran || rep.OptimizeError != "" || rep.EvictError != "" {
		t.Errorf("maintenance: ran=%v rep=%+v", ran, rep)
	}

	// The whole store travels to another machine.
	doc, err := s.Export()
	if err != nil {
		t.Fatal(err)
	}
	other := newTestStore(t)
	importRep, err := other.Import(doc)
	if err != nil {
		t.Fatal(err)
	}
	if importRep.Imported != 3 || importRep.Links != 1 {
		t.Errorf("import report = %+v", importRep)
	}

	// And the decision is findable over there, updated content included.
	hits, err = other.Search(memory.SearchParams{Query: "redis week expiry", ProjectID: "shop"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Content != updated {
		t.Errorf("imported decision hits = %d", len(hits))
	}
}

// ─── FTS5 Edge Cases ─────────────────────────────────────────────────────────

func TestSearch_UnicodeContent(t *testing.T) {
	s := newTestStore(t)

	inputs := []string{
		"日本語のコンテンツをテストしています",
		"Probando búsqueda con acentos y ñ",
		"Content with emojis 🎉 and symbols ™",
	}
	for _, content := range inputs {
		mustInsert(t, s, memory.StoreParams{Content: content, Force: true})
	}

	// Latin text with diacritics round-trips through unicode61.
	hits, err := s.Search(memory.SearchParams{Query: "búsqueda acentos"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("accented search = %d results, want 1", len(hits))
	}

	// CJK and emoji tokenization varies by build. We only require that
	// the queries never error.
	for _, q := range []string{"日本語", "🎉", "ñ"} {
		if _, err := s.Search(memory.SearchParams{Query: q}); err != nil {
			t.Errorf("Search(%q) error: %v", q, err)
		}
	}
}

func TestSearch_VeryLongQuery(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, memory.StoreParams{Content: "normal sized entry for long query probing"})

	longQuery := strings.Repeat("search term ", 500)
	if _, err := s.Search(memory.SearchParams{Query: longQuery}); err != nil {
		t.Fatalf("long query should not error: %v", err)
	}
}

// ─── Bulk Writes ─────────────────────────────────────────────────────────────

func TestIntegration_BulkWrites(t *testing.T) {
	s := newTestStore(t)

	// Sequential writes through one handle. WAL plus busy_timeout
	// serializes file access underneath, so none of these may fail.
	const count = 30
	for i := 0; i < count; i++ {
		if _, _, err := s.Insert(memory.StoreParams{
			Content: fmt.Sprintf("bulk write payload row %d", i),
			Force:   true,
		}); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != count {
		t.Errorf("Total = %d, want %d", stats.Total, count)
	}
}

// ─── Multi-Project Isolation ─────────────────────────────────────────────────

func TestIntegration_MultiProjectIsolation(t *testing.T) {
	s := newTestStore(t)

	mustInsert(t, s, memory.StoreParams{
		Content:   "alpha chose postgres for reporting workloads",
		ProjectID: "project-alpha",
	})
	mustInsert(t, s, memory.StoreParams{
		Content:   "beta keeps reporting inside clickhouse clusters",
		ProjectID: "project-beta",
	})

	alpha, err := s.Search(memory.SearchParams{
		Query: "reporting", Scope: memory.ScopeProject, ProjectID: "project-alpha",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(alpha) != 1 || !strings.Contains(alpha[0].Content, "postgres") {
		t.Errorf("alpha sees %d results", len(alpha))
	}

	beta, err := s.Search(memory.SearchParams{
		Query: "reporting", Scope: memory.ScopeProject, ProjectID: "project-beta",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(beta) != 1 || !strings.Contains(beta[0].Content, "clickhouse") {
		t.Errorf("beta sees %d results", len(beta))
	}
}
