package memory_test

import (
	"testing"
	"time"

	"github.com/engramdev/engram/internal/memory"
)

// ─── Tags ────────────────────────────────────────────────────────────────────

func TestAddTags_IdempotentAndNormalized(t *testing.T) {
	s := newTestStore(t)
	m := mustInsert(t, s, memory.StoreParams{Content: "tagged entry under test"})

	tags, err := s.AddTags(m.ID, []string{" Go ", "API", "go"})
	if err != nil {
		t.Fatalf("AddTags error: %v", err)
	}
	want := []string{"api", "go"}
	if len(tags) != 2 || tags[0] != want[0] || tags[1] != want[1] {
		t.Errorf("tags = %v, want %v", tags, want)
	}

	again, err := s.AddTags(m.ID, []string{"go", "api"})
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 {
		t.Errorf("re-add changed tag count: %v", again)
	}
}

func TestAddTags_UnknownID(t *testing.T) {
	s := newTestStore(t)
	tags, err := s.AddTags("no-such-id", []string{"go"})
	if err != nil {
		t.Fatalf("AddTags unknown id error: %v", err)
	}
	if tags != nil {
		t.Errorf("tags = %v, want nil for unknown id", tags)
	}
}

func TestRemoveTags(t *testing.T) {
	s := newTestStore(t)
	m := mustInsert(t, s, memory.StoreParams{
		Content: "entry that loses a tag",
		Tags:    []string{"keep", "drop"},
	})

	tags, err := s.RemoveTags(m.ID, []string{"DROP", "never-there"})
	if err != nil {
		t.Fatalf("RemoveTags error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "keep" {
		t.Errorf("tags = %v, want [keep]", tags)
	}
}

func TestSetTags_ReplacesWholesale(t *testing.T) {
	s := newTestStore(t)
	m := mustInsert(t, s, memory.StoreParams{
		Content: "entry whose tags get replaced",
		Tags:    []string{"old-one", "old-two"},
	})

	tags, err := s.SetTags(m.ID, []string{"New"})
	if err != nil {
		t.Fatalf("SetTags error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "new" {
		t.Errorf("tags = %v, want [new]", tags)
	}

	cleared, err := s.SetTags(m.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cleared) != 0 {
		t.Errorf("SetTags(nil) left %v", cleared)
	}
}

func TestAllTags_CountsDescending(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, memory.StoreParams{Content: "first tagged row entry", Tags: []string{"common", "rare"}})
	mustInsert(t, s, memory.StoreParams{Content: "second tagged row payload", Tags: []string{"common"}})
	mustInsert(t, s, memory.StoreParams{Content: "third tagged row material", Tags: []string{"common"}})

	counts, err := s.AllTags()
	if err != nil {
		t.Fatalf("AllTags error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %v, want 2 tags", counts)
	}
	if counts[0].Tag != "common" || counts[0].Count != 3 {
		t.Errorf("counts[0] = %+v, want common×3", counts[0])
	}
	if counts[1].Tag != "rare" || counts[1].Count != 1 {
		t.Errorf("counts[1] = %+v, want rare×1", counts[1])
	}
}

func TestSearchByTag(t *testing.T) {
	s := newTestStore(t)
	advance := pinClock(t, time.Unix(1_700_000_000, 0))

	older := mustInsert(t, s, memory.StoreParams{Content: "older entry carrying shared tag", ProjectID: "p1", Tags: []string{"infra"}})
	advance(time.Minute)
	newer := mustInsert(t, s, memory.StoreParams{Content: "newer payload carrying shared tag", ProjectID: "p1", Tags: []string{"infra"}})
	mustInsert(t, s, memory.StoreParams{Content: "entry from another project space", ProjectID: "p2", Tags: []string{"infra"}})

	got, err := s.SearchByTag(" INFRA ", "p1", 0)
	if err != nil {
		t.Fatalf("SearchByTag error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (p1 + globals only)", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("ordering: got %s then %s", got[0].ID, got[1].ID)
	}

	all, err := s.SearchByTag("infra", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("unscoped len = %d, want 3", len(all))
	}

	none, err := s.SearchByTag("", "p1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("empty tag should return nothing, got %v", none)
	}
}

// ─── Links ───────────────────────────────────────────────────────────────────

func TestAddLink_Basic(t *testing.T) {
	s := newTestStore(t)
	a := mustInsert(t, s, memory.StoreParams{Content: "decision to adopt sqlite storage"})
	b := mustInsert(t, s, memory.StoreParams{Content: "pattern for wrapping database errors"})

	ok, err := s.AddLink(a.ID, b.ID, memory.RelSupersedes)
	if err != nil {
		t.Fatalf("AddLink error: %v", err)
	}
	if !ok {
		t.Fatal("AddLink reported false for valid edge")
	}

	fromA, err := s.LinksFor(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromA) != 1 {
		t.Fatalf("LinksFor(a) = %d edges, want 1", len(fromA))
	}
	if fromA[0].Direction != "out" || fromA[0].Relationship != memory.RelSupersedes || fromA[0].Memory.ID != b.ID {
		t.Errorf("edge from a = %+v", fromA[0])
	}

	fromB, err := s.LinksFor(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromB) != 1 || fromB[0].Direction != "in" || fromB[0].Memory.ID != a.ID {
		t.Errorf("edge from b = %+v", fromB)
	}
}

func TestAddLink_RefusalsReturnFalse(t *testing.T) {
	s := newTestStore(t)
	a := mustInsert(t, s, memory.StoreParams{Content: "lonely endpoint entry"})

	cases := []struct {
		name           string
		source, target string
		rel            string
	}{
		{"self link", a.ID, a.ID, memory.RelRelated},
		{"unknown source", "ghost", a.ID, memory.RelRelated},
		{"unknown target", a.ID, "ghost", memory.RelRelated},
		{"unknown relationship", a.ID, a.ID + "x", "friends"},
		{"empty relationship", a.ID, a.ID + "x", ""},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.AddLink(tt.source, tt.target, tt.rel)
			if err != nil {
				t.Fatalf("AddLink error: %v", err)
			}
			if ok {
				t.Error("AddLink should report false")
			}
		})
	}
}

func TestAddLink_UpsertOverwritesRelationship(t *testing.T) {
	s := newTestStore(t)
	a := mustInsert(t, s, memory.StoreParams{Content: "initial approach captured for comparison"})
	b := mustInsert(t, s, memory.StoreParams{Content: "replacement notes written after review"})

	if ok, _ := s.AddLink(a.ID, b.ID, memory.RelRelated); !ok {
		t.Fatal("first AddLink failed")
	}
	if ok, _ := s.AddLink(a.ID, b.ID, memory.RelContradicts); !ok {
		t.Fatal("second AddLink failed")
	}

	links, err := s.LinksFor(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Fatalf("upsert duplicated the edge: %d", len(links))
	}
	if links[0].Relationship != memory.RelContradicts {
		t.Errorf("Relationship = %q, want contradicts", links[0].Relationship)
	}
}

func TestRemoveLink(t *testing.T) {
	s := newTestStore(t)
	a := mustInsert(t, s, memory.StoreParams{Content: "link removal source entry alpha"})
	b := mustInsert(t, s, memory.StoreParams{Content: "completely different target material beta"})

	if ok, _ := s.AddLink(a.ID, b.ID, memory.RelRelated); !ok {
		t.Fatal("AddLink failed")
	}

	ok, err := s.RemoveLink(a.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveLink error: %v", err)
	}
	if !ok {
		t.Error("RemoveLink should report true")
	}

	again, err := s.RemoveLink(a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("second RemoveLink should report false")
	}
}

func TestLinksFor_UnknownAndEmpty(t *testing.T) {
	s := newTestStore(t)

	links, err := s.LinksFor("no-such-id")
	if err != nil {
		t.Fatalf("LinksFor unknown id error: %v", err)
	}
	if links != nil {
		t.Errorf("LinksFor unknown id = %v, want nil", links)
	}

	m := mustInsert(t, s, memory.StoreParams{Content: "memory without any links"})
	links, err = s.LinksFor(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if links == nil || len(links) != 0 {
		t.Errorf("LinksFor unlinked = %v, want empty slice", links)
	}
}
