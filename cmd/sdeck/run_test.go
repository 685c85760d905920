package main

import "testing"

// TestRefreshHooks verifies every chained consumer sees each refresh.
func TestRefreshHooks(t *testing.T) {
	var first, second []string
	hook := refreshHooks(
		func(folderID string) { first = append(first, folderID) },
		func(folderID string) { second = append(second, folderID) },
	)

	hook("docs")
	hook("media")

	for name, got := range map[string][]string{"first": first, "second": second} {
		if len(got) != 2 || got[0] != "docs" || got[1] != "media" {
			t.Errorf("%s hook saw %v, want [docs media]", name, got)
		}
	}
}
