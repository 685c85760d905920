package ui

import (
	"strings"
	"testing"

	"github.com/grahamwalsh/syncdeck/internal/browse"
	"github.com/grahamwalsh/syncdeck/internal/category"
)

func init() {
	// Force plain output so assertions see no escape codes.
	Init(true)
}

func TestBreakdownTable_AllSynced(t *testing.T) {
	out := BreakdownTable("docs", map[category.Category]int{
		category.Downloading: 0,
		category.Queued:      0,
	})
	if !strings.Contains(out, "everything in sync") {
		t.Errorf("Expected all-synced line, got %q", out)
	}
}

func TestBreakdownTable_Counts(t *testing.T) {
	out := BreakdownTable("docs", map[category.Category]int{
		category.Downloading: 3,
		category.RemoteOnly:  1,
		category.Queued:      0,
	})

	for _, want := range []string{"docs", "Downloading", "Remote only", "total", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "everything in sync") {
		t.Error("Non-zero counts should not render as all-synced")
	}
}

func TestFilterBadge(t *testing.T) {
	if got := FilterBadge(browse.State{Mode: browse.ModeInactive}); got != "" {
		t.Errorf("Inactive badge = %q, want empty", got)
	}
	if got := FilterBadge(browse.State{Mode: browse.ModeSearch, Query: "tax"}); !strings.Contains(got, "search: tax") {
		t.Errorf("Search badge = %q", got)
	}
	if got := FilterBadge(browse.State{Mode: browse.ModeOutOfSync}); !strings.Contains(got, "out-of-sync") {
		t.Errorf("Out-of-sync badge = %q", got)
	}
}

func TestEntryLine(t *testing.T) {
	dir := browse.Entry{Name: "photos", Path: "photos", IsDir: true}
	if got := EntryLine(dir, false); !strings.Contains(got, "photos/") {
		t.Errorf("Directory entry = %q, want trailing slash", got)
	}
	if got := EntryLine(dir, true); !strings.Contains(got, "▸") {
		t.Errorf("Selected entry = %q, want cursor marker", got)
	}
}
