package browse

import "strings"

// Apply computes the filtered projection of level against a flat set of
// matching paths.
//
// A file entry is kept when its full path is in the set. A directory
// entry is kept when its own path is in the set, or when it is a strict
// ancestor of any path in the set, at any depth (directory aggregation).
// The ancestor check is a prefix match against the flat set, not a walk
// of a materialized subtree.
//
// Returns nil, meaning "show unfiltered", when the set is empty or when
// nothing in the level matches. Never mutates level.Items, and calling
// twice with unchanged inputs yields identical output.
func Apply(level *Level, paths map[string]bool) []Entry {
	if level == nil || len(paths) == 0 {
		return nil
	}

	var out []Entry
	for _, e := range level.Items {
		if matches(e, paths) {
			out = append(out, e)
		}
	}
	return out
}

// matches implements the per-entry filter rule.
func matches(e Entry, paths map[string]bool) bool {
	if paths[e.Path] {
		return true
	}
	if !e.IsDir {
		return false
	}

	prefix := e.Path + "/"
	for p := range paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// SearchMatches returns the set of paths in items whose name contains
// query, case-insensitively.
//
// The result feeds Apply, which re-adds ancestor directories of matches
// through the same aggregation rule the out-of-sync filter uses. An empty
// query matches nothing.
func SearchMatches(items []Entry, query string) map[string]bool {
	if query == "" {
		return nil
	}

	q := strings.ToLower(query)
	set := make(map[string]bool)
	for _, e := range items {
		if strings.Contains(strings.ToLower(e.Name), q) {
			set[e.Path] = true
		}
	}
	return set
}
