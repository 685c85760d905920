// Package browse models the hierarchical folder browser: directory
// levels, the non-destructive filter overlay, and the filter mode state
// machine.
//
// The unfiltered listing of a level is the source of truth and is never
// mutated. Filtering is an overlay: a subsequence of the listing computed
// on demand and discarded on clear, so no race or failure can blank the
// underlying data.
package browse

import "time"

// Entry is one item of a directory listing.
type Entry struct {
	// Name is the display name within its level.
	Name string

	// Path is the full path relative to the folder root, with "/"
	// separators regardless of platform.
	Path string

	// IsDir marks directory entries.
	IsDir bool

	// Size is the file size in bytes (0 for directories).
	Size int64

	// ModTime is the last modification time reported by the daemon.
	ModTime time.Time
}

// Level represents one directory's contents at one depth of the browse
// stack.
//
// Items is produced by the directory listing and never mutated here.
// Filtered, when non-nil, is always a subsequence of Items: same entries,
// same relative order, some removed. A nil Filtered means "show Items
// unfiltered".
type Level struct {
	// FolderID identifies the synced folder this level belongs to.
	FolderID string

	// Path is the directory path of this level, "" for the folder root.
	Path string

	// Items is the unfiltered listing.
	Items []Entry

	// Filtered is the active overlay, nil when no filter applies.
	Filtered []Entry

	// Selected is the cursor index into the visible listing.
	Selected int
}

// Visible returns the listing the presentation layer should render:
// the overlay when one is active, the unfiltered items otherwise.
func (l *Level) Visible() []Entry {
	if l.Filtered != nil {
		return l.Filtered
	}
	return l.Items
}
