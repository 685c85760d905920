package browse

import (
	"testing"
	"time"
)

// TestMachine_MutualExclusion verifies search and the out-of-sync filter
// can never be active together, in both transition directions.
func TestMachine_MutualExclusion(t *testing.T) {
	var notices []string
	m := NewMachine(func(s string) { notices = append(notices, s) })

	m.EnterSearch("foo", 0, nil)
	if m.State().Mode != ModeSearch || m.State().Query != "foo" {
		t.Fatalf("State = %+v, want search for foo", m.State())
	}

	m.EnterOutOfSync(0, nil)
	st := m.State()
	if st.Mode != ModeOutOfSync {
		t.Errorf("Mode = %v, want %v", st.Mode, ModeOutOfSync)
	}
	if st.Query != "" {
		t.Errorf("Query = %q, want cleared", st.Query)
	}
	if len(notices) != 1 {
		t.Errorf("Notices = %v, want one mode-switch notice", notices)
	}

	// Symmetric transition.
	m.EnterSearch("bar", 0, nil)
	st = m.State()
	if st.Mode != ModeSearch || st.Query != "bar" {
		t.Errorf("State = %+v, want search for bar", st)
	}
	if len(notices) != 2 {
		t.Errorf("Notices = %v, want two mode-switch notices", notices)
	}
}

// TestMachine_ClearPreservesSelection verifies the cursor follows its
// entry from the overlay back into the unfiltered listing.
func TestMachine_ClearPreservesSelection(t *testing.T) {
	a := Entry{Name: "a", Path: "a"}
	b := Entry{Name: "b", Path: "b"}
	c := Entry{Name: "c", Path: "c"}

	level := &Level{
		Items:    []Entry{a, b, c},
		Filtered: []Entry{a, c},
		Selected: 1, // pointing at c in the overlay
	}

	m := NewMachine(nil)
	m.EnterOutOfSync(0, nil)
	m.Clear([]*Level{level}, true, "")

	if level.Filtered != nil {
		t.Errorf("Filtered = %v, want nil", level.Filtered)
	}
	if level.Selected != 2 {
		t.Errorf("Selected = %d, want 2 (position of c in Items)", level.Selected)
	}
	if m.Active() {
		t.Error("Machine should be inactive after Clear")
	}
}

// TestMachine_ClearSelectionFallback verifies the cursor fails safe when
// the selected entry vanished from the unfiltered listing.
func TestMachine_ClearSelectionFallback(t *testing.T) {
	level := &Level{
		Items:    []Entry{{Name: "a", Path: "a"}},
		Filtered: []Entry{{Name: "gone", Path: "gone"}},
		Selected: 0,
	}

	m := NewMachine(nil)
	m.Clear([]*Level{level}, true, "")

	if level.Selected != 0 {
		t.Errorf("Selected = %d, want 0", level.Selected)
	}
}

// TestMachine_ClearWithoutPreserve verifies the cursor is left untouched
// when selection is not preserved.
func TestMachine_ClearWithoutPreserve(t *testing.T) {
	level := &Level{
		Items:    []Entry{{Name: "a", Path: "a"}, {Name: "b", Path: "b"}},
		Filtered: []Entry{{Name: "b", Path: "b"}},
		Selected: 7,
	}

	m := NewMachine(nil)
	m.Clear([]*Level{level}, false, "")

	if level.Filtered != nil {
		t.Errorf("Filtered = %v, want nil", level.Filtered)
	}
	if level.Selected != 7 {
		t.Errorf("Selected = %d, want 7 (untouched)", level.Selected)
	}
}

// TestMachine_ClearNotice verifies a non-empty notice reaches the user
// and an empty one stays silent.
func TestMachine_ClearNotice(t *testing.T) {
	var notices []string
	m := NewMachine(func(s string) { notices = append(notices, s) })

	m.EnterSearch("q", 0, nil)
	m.Clear(nil, true, "")
	if len(notices) != 0 {
		t.Errorf("Notices = %v, want none for silent clear", notices)
	}

	m.EnterSearch("q", 0, nil)
	m.Clear(nil, true, "Search cleared")
	if len(notices) != 1 || notices[0] != "Search cleared" {
		t.Errorf("Notices = %v, want [Search cleared]", notices)
	}
}

// TestMachine_MarkRefreshed verifies the refresh stamp applies only while
// the out-of-sync filter is active.
func TestMachine_MarkRefreshed(t *testing.T) {
	m := NewMachine(nil)
	stamp := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	m.MarkRefreshed(stamp)
	if !m.State().LastRefresh.IsZero() {
		t.Error("LastRefresh should not be set while inactive")
	}

	m.EnterOutOfSync(2, nil)
	m.MarkRefreshed(stamp)
	if !m.State().LastRefresh.Equal(stamp) {
		t.Errorf("LastRefresh = %v, want %v", m.State().LastRefresh, stamp)
	}
	if m.State().OriginLevel != 2 {
		t.Errorf("OriginLevel = %d, want 2", m.State().OriginLevel)
	}
}
