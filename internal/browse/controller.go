package browse

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/category"
)

// StateCache is the slice of the sync-state cache the browser consumes.
//
// Implemented by cache.Store. Query failures are treated as "no cached
// data": the browser falls back to the unfiltered listing and keeps the
// filter mode active, because a blank screen is strictly worse than a
// stale or unfiltered one.
type StateCache interface {
	QueryByCategory(ctx context.Context, folderID string, match func(category.Category) bool) (map[string]bool, error)
}

// Controller drives the browse stack for one displayed folder.
//
// It owns the visible levels, funnels every filter trigger through the
// state machine, and recomputes overlays from the cache. All methods must
// be called from the single event-consumption goroutine; the controller
// adds no locking of its own.
type Controller struct {
	folderID string
	cache    StateCache
	machine  *Machine
	levels   []*Level
	logger   *log.Logger
	now      func() time.Time
}

// NewController creates a browse controller for folderID.
//
// notify delivers user-visible notices (toasts); nil drops them. If
// logger is nil, a default logger writing to stderr is used.
func NewController(folderID string, cache StateCache, logger *log.Logger, notify func(string)) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "[browse] ", log.LstdFlags)
	}
	return &Controller{
		folderID: folderID,
		cache:    cache,
		machine:  NewMachine(notify),
		logger:   logger,
		now:      time.Now,
	}
}

// FolderID returns the folder this controller displays.
func (c *Controller) FolderID() string {
	return c.folderID
}

// Levels returns the visible browse stack, root first.
func (c *Controller) Levels() []*Level {
	return c.levels
}

// Depth returns the depth of the deepest visible level, -1 when nothing
// is open.
func (c *Controller) Depth() int {
	return len(c.levels) - 1
}

// FilterState returns the current filter state for rendering.
func (c *Controller) FilterState() State {
	return c.machine.State()
}

// Push opens a new level (the user descended into a directory).
//
// When a filter mode is active, the overlay is applied to the new level
// immediately so descending never flashes unfiltered content.
func (c *Controller) Push(ctx context.Context, level *Level) {
	c.levels = append(c.levels, level)
	if c.machine.Active() {
		c.Reapply(ctx)
	}
}

// Pop closes the deepest level (the user backed out of a directory).
//
// Backing out past the depth where the active mode was entered clears
// the mode without preserving selection: the user is leaving the context
// the filter belonged to.
func (c *Controller) Pop() {
	if len(c.levels) == 0 {
		return
	}
	c.levels = c.levels[:len(c.levels)-1]

	st := c.machine.State()
	if st.Mode != ModeInactive && c.Depth() < st.OriginLevel {
		c.machine.Clear(c.levels, false, "")
	}
}

// ToggleOutOfSyncFilter flips the out-of-sync filter.
//
// Toggling off while on is a selection-preserving clear with no notice:
// the user stays in context. Toggling on clears an active search first
// (with a notice) and computes the overlay from the cache.
func (c *Controller) ToggleOutOfSyncFilter(ctx context.Context) {
	if c.machine.State().Mode == ModeOutOfSync {
		c.machine.Clear(c.levels, true, "")
		return
	}

	c.machine.EnterOutOfSync(c.Depth(), c.levels)
	c.Reapply(ctx)
}

// EnterSearch activates search mode with the given query, clearing an
// active out-of-sync filter first.
func (c *Controller) EnterSearch(ctx context.Context, query string) {
	c.machine.EnterSearch(query, c.Depth(), c.levels)
	c.Reapply(ctx)
}

// ClearActiveMode exits whichever mode is active, preserving selection.
func (c *Controller) ClearActiveMode() {
	if !c.machine.Active() {
		return
	}
	c.machine.Clear(c.levels, true, "")
}

// Reapply recomputes every visible level's overlay for the active mode.
//
// Called on filter toggle, on cache update arrival, and on directory
// listing refresh. Recomputation is full, not incremental, and
// idempotent: unchanged inputs produce identical overlays.
func (c *Controller) Reapply(ctx context.Context) {
	switch c.machine.State().Mode {
	case ModeOutOfSync:
		c.reapplyOutOfSync(ctx)
	case ModeSearch:
		c.reapplySearch()
	}
}

func (c *Controller) reapplyOutOfSync(ctx context.Context) {
	paths, err := c.cache.QueryByCategory(ctx, c.folderID, nil)
	if err != nil {
		// Fail open: no overlay, mode stays active.
		c.logger.Printf("Cache query failed for %s, showing unfiltered: %v", c.folderID, err)
		for _, level := range c.levels {
			level.Filtered = nil
		}
		return
	}

	for _, level := range c.levels {
		level.Filtered = Apply(level, paths)
		clampSelection(level)
	}
	c.machine.MarkRefreshed(c.now())
}

func (c *Controller) reapplySearch() {
	query := c.machine.State().Query

	// One match set across all visible levels: a directory whose own
	// name does not match still shows when a deeper level holds a match,
	// through the same prefix aggregation the out-of-sync filter uses.
	matches := make(map[string]bool)
	for _, level := range c.levels {
		for p := range SearchMatches(level.Items, query) {
			matches[p] = true
		}
	}

	for _, level := range c.levels {
		level.Filtered = Apply(level, matches)
		clampSelection(level)
	}
}

// clampSelection keeps the cursor inside the visible listing.
func clampSelection(level *Level) {
	visible := level.Visible()
	if len(visible) == 0 {
		level.Selected = 0
		return
	}
	if level.Selected < 0 {
		level.Selected = 0
	}
	if level.Selected >= len(visible) {
		level.Selected = len(visible) - 1
	}
}
