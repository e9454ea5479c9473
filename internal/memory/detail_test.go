package memory_test

import (
	"strings"
	"testing"

	"github.com/engramdev/engram/internal/memory"
)

func TestParseDetailLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"summary", memory.DetailSummary},
		{"standard", memory.DetailStandard},
		{"full", memory.DetailFull},
		{"", memory.DetailStandard},
		{"FULL", memory.DetailStandard},
		{"verbose", memory.DetailStandard},
	}
	for _, tt := range tests {
		if got := memory.ParseDetailLevel(tt.in); got != tt.want {
			t.Errorf("ParseDetailLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetailLevelValues(t *testing.T) {
	got := memory.DetailLevelValues()
	want := []string{"summary", "standard", "full"}
	if len(got) != len(want) {
		t.Fatalf("DetailLevelValues() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DetailLevelValues()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNavigationHint(t *testing.T) {
	tests := []struct {
		name    string
		showing int
		total   int
		hint    string
		want    string
	}{
		{"capped with hint", 5, 10, "Use offset to page.", "\n📊 Showing 5 of 10. Use offset to page."},
		{"capped without hint", 3, 7, "", "\n📊 Showing 3 of 7."},
		{"everything shown", 10, 10, "Use offset.", ""},
		{"empty result", 0, 0, "Use offset.", ""},
		{"showing past total", 12, 10, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memory.NavigationHint(tt.showing, tt.total, tt.hint); got != tt.want {
				t.Errorf("NavigationHint(%d, %d, %q) = %q, want %q",
					tt.showing, tt.total, tt.hint, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := memory.EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.in), got, tt.want)
		}
	}
}

func TestTokenFooter_CommaSeparated(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{42, "\n📏 ~42 tokens"},
		{999, "\n📏 ~999 tokens"},
		{1234, "\n📏 ~1,234 tokens"},
		{1234567, "\n📏 ~1,234,567 tokens"},
	}
	for _, tt := range tests {
		if got := memory.TokenFooter(tt.in); got != tt.want {
			t.Errorf("TokenFooter(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
