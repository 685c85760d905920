package browse

import "time"

// Mode identifies which filter mode, if any, is active.
type Mode int

const (
	// ModeInactive means no filter or search is active.
	ModeInactive Mode = iota

	// ModeSearch means a text search is filtering the tree.
	ModeSearch

	// ModeOutOfSync means the out-of-sync filter is active.
	ModeOutOfSync
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeInactive:
		return "inactive"
	case ModeSearch:
		return "search"
	case ModeOutOfSync:
		return "out-of-sync"
	default:
		return "unknown"
	}
}

// State is the current filter mode plus its entry context.
type State struct {
	// Mode is the active mode.
	Mode Mode

	// Query is the search text. Set only in ModeSearch.
	Query string

	// OriginLevel is the tree depth at which the mode was entered.
	// Backing out of the tree past this depth auto-clears the mode.
	OriginLevel int

	// LastRefresh is when the out-of-sync overlay was last recomputed
	// from the cache. Set only in ModeOutOfSync.
	LastRefresh time.Time
}

// Machine tracks which filter mode is active and is the single writer of
// that state.
//
// Search and the out-of-sync filter are mutually exclusive; every
// transition enforces this by clearing the other mode first. All external
// triggers funnel through EnterSearch, EnterOutOfSync, and Clear — no
// call site mutates mode state directly.
type Machine struct {
	state  State
	notify func(string)
}

// NewMachine creates a filter state machine. notify delivers user-visible
// notices (mode-switch messages); a nil notify drops them.
func NewMachine(notify func(string)) *Machine {
	if notify == nil {
		notify = func(string) {}
	}
	return &Machine{notify: notify}
}

// State returns a copy of the current filter state.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether any filter mode is on.
func (m *Machine) Active() bool {
	return m.state.Mode != ModeInactive
}

// EnterSearch activates search mode at the given depth.
//
// An active out-of-sync filter is cleared first, preserving the cursor
// and telling the user why their filter went away.
func (m *Machine) EnterSearch(query string, depth int, levels []*Level) {
	if m.state.Mode == ModeOutOfSync {
		m.Clear(levels, true, "Out-of-sync filter cleared: search started")
	}
	m.state = State{
		Mode:        ModeSearch,
		Query:       query,
		OriginLevel: depth,
	}
}

// EnterOutOfSync activates the out-of-sync filter at the given depth,
// symmetric to EnterSearch.
func (m *Machine) EnterOutOfSync(depth int, levels []*Level) {
	if m.state.Mode == ModeSearch {
		m.Clear(levels, true, "Search cleared: out-of-sync filter enabled")
	}
	m.state = State{
		Mode:        ModeOutOfSync,
		OriginLevel: depth,
	}
}

// MarkRefreshed records when the out-of-sync overlay was last recomputed.
func (m *Machine) MarkRefreshed(t time.Time) {
	if m.state.Mode == ModeOutOfSync {
		m.state.LastRefresh = t
	}
}

// Clear is the single exit path for both modes.
//
// Every level's overlay is dropped. When preserveSelection is set, the
// cursor is re-pointed at the same entry within the unfiltered listing:
// the name under the cursor in the overlay is recorded, the overlay is
// cleared, and the cursor becomes that name's position in Items (falling
// back to 0 if the name no longer exists). When not preserving, the
// cursor is left untouched.
//
// A non-empty notice is delivered to the user. Clearing while already
// inactive is a no-op apart from dropping stray overlays.
func (m *Machine) Clear(levels []*Level, preserveSelection bool, notice string) {
	for _, level := range levels {
		if level == nil {
			continue
		}
		if !preserveSelection {
			level.Filtered = nil
			continue
		}

		var name string
		if level.Filtered != nil && level.Selected >= 0 && level.Selected < len(level.Filtered) {
			name = level.Filtered[level.Selected].Name
		}

		level.Filtered = nil

		if name == "" {
			continue
		}
		level.Selected = 0
		for i, e := range level.Items {
			if e.Name == name {
				level.Selected = i
				break
			}
		}
	}

	m.state = State{}

	if notice != "" {
		m.notify(notice)
	}
}
