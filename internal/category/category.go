// Package category classifies paths tracked by the sync daemon into
// sync-state categories.
//
// Categorization is a pure transform: given the daemon's "needed files"
// response and its "locally changed" list, it produces a per-path category
// mapping suitable for the cache's clear-then-insert upsert. No I/O, no
// shared state.
package category

// Category is the sync-state classification of a single path.
//
// All categories are mutually exclusive per path at a given instant.
// CategoryNone means the path is not in any out-of-sync class.
type Category string

const (
	// Downloading means the daemon is actively transferring the item.
	Downloading Category = "downloading"

	// Queued means the item is waiting in the daemon's transfer queue.
	Queued Category = "queued"

	// RemoteOnly means the item exists remotely but no local copy exists.
	RemoteOnly Category = "remote-only"

	// Modified means a local copy exists at a different version than
	// the remote one.
	Modified Category = "modified"

	// LocalOnly means the item was changed or added locally and has not
	// been accepted by the remote side. Only meaningful for folders with
	// a receive-leaning policy.
	LocalOnly Category = "local-only"

	// None means the path is fully in sync.
	None Category = ""
)

// OutOfSync lists every category that marks a path as out of sync,
// in no particular order.
var OutOfSync = []Category{Downloading, Queued, RemoteOnly, Modified, LocalOnly}

// Valid reports whether c is a known category value.
func (c Category) Valid() bool {
	switch c {
	case Downloading, Queued, RemoteOnly, Modified, LocalOnly, None:
		return true
	}
	return false
}

// String returns the wire/storage representation of the category.
// None renders as "none" for display purposes even though it is stored
// as NULL.
func (c Category) String() string {
	if c == None {
		return "none"
	}
	return string(c)
}

// NeededFiles is the daemon's answer to a "what do I still need" query
// for one folder, already flattened across pages.
type NeededFiles struct {
	// InProgress lists paths the daemon is currently transferring.
	InProgress []string

	// Queued lists paths waiting in the transfer queue.
	Queued []string

	// Rest lists paths needed but neither in progress nor queued.
	Rest []string
}

// LocalChecker reports whether a local copy of path currently exists.
//
// It refines the "rest" bucket: paths with a local copy are Modified,
// paths without one are RemoteOnly. A nil checker defaults every rest
// path to RemoteOnly.
type LocalChecker func(path string) bool

// Categorize turns one needed-files response plus one locally-changed
// list into a per-path category mapping.
//
// Precedence is first match wins: in-progress, then queued, then rest,
// then locally changed. The daemon sends disjoint lists within a single
// response, but overlapping input must not produce conflicting entries,
// so earlier assignments are never overwritten.
//
// The result is deterministic for any given input and safe to hand to
// cache.UpsertCategories as-is.
func Categorize(needed NeededFiles, locallyChanged []string, localExists LocalChecker) map[string]Category {
	out := make(map[string]Category, len(needed.InProgress)+len(needed.Queued)+len(needed.Rest)+len(locallyChanged))

	for _, p := range needed.InProgress {
		assign(out, p, Downloading)
	}
	for _, p := range needed.Queued {
		assign(out, p, Queued)
	}
	for _, p := range needed.Rest {
		c := RemoteOnly
		if localExists != nil && localExists(p) {
			c = Modified
		}
		assign(out, p, c)
	}
	for _, p := range locallyChanged {
		assign(out, p, LocalOnly)
	}

	return out
}

// assign records a category for path unless one is already present.
func assign(m map[string]Category, path string, c Category) {
	if path == "" {
		return
	}
	if _, exists := m[path]; exists {
		return
	}
	m[path] = c
}
