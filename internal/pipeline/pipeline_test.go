package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/category"
)

// fakeStore is an in-memory StateStore recording pipeline writes.
type fakeStore struct {
	mu          sync.Mutex
	invalidated []string
	upserts     map[string]map[string]category.Category
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: make(map[string]map[string]category.Category)}
}

func (f *fakeStore) Invalidate(ctx context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, folderID)
	return nil
}

func (f *fakeStore) UpsertCategories(ctx context.Context, folderID string, entries map[string]category.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[folderID] = entries
	return nil
}

func (f *fakeStore) invalidateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invalidated)
}

func (f *fakeStore) upsertFor(folderID string) map[string]category.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts[folderID]
}

// fakeSource is a controllable StatusSource.
type fakeSource struct {
	needed  category.NeededFiles
	changed []string
	err     error

	fetches atomic.Int32
	gate    chan struct{} // non-nil: FetchNeeded blocks until closed
}

func (f *fakeSource) FetchNeeded(ctx context.Context, folderID string) (category.NeededFiles, error) {
	f.fetches.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return category.NeededFiles{}, ctx.Err()
		}
	}
	if f.err != nil {
		return category.NeededFiles{}, f.err
	}
	return f.needed, nil
}

func (f *fakeSource) FetchLocallyChanged(ctx context.Context, folderID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.changed, nil
}

func quietConfig() *Config {
	return &Config{
		InFlightTimeout: 30 * time.Second,
		Logger:          log.New(io.Discard, "", 0),
	}
}

// startPipeline runs p.Run on a goroutine and stops it on test cleanup.
func startPipeline(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("pipeline did not stop")
		}
	})
}

// TestPipeline_EventToRefresh verifies the full path from a domain event
// to an upserted categorization and the refresh callback.
func TestPipeline_EventToRefresh(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		needed: category.NeededFiles{
			InProgress: []string{"a.bin"},
			Rest:       []string{"b.bin"},
		},
		changed: []string{"c.bin"},
	}

	refreshed := make(chan string, 1)
	cfg := quietConfig()
	cfg.OnRefreshed = func(folderID string) { refreshed <- folderID }

	p, err := New(store, source, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startPipeline(t, p)

	p.Dispatch(Event{Type: TransferStarted, FolderID: "docs", Path: "a.bin"})

	select {
	case folder := <-refreshed:
		if folder != "docs" {
			t.Errorf("Refreshed folder = %q, want docs", folder)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for refresh")
	}

	if store.invalidateCount() != 1 {
		t.Errorf("Invalidate count = %d, want 1", store.invalidateCount())
	}

	entries := store.upsertFor("docs")
	want := map[string]category.Category{
		"a.bin": category.Downloading,
		"b.bin": category.RemoteOnly,
		"c.bin": category.LocalOnly,
	}
	if len(entries) != len(want) {
		t.Fatalf("Upserted %d entries, want %d: %v", len(entries), len(want), entries)
	}
	for path, cat := range want {
		if entries[path] != cat {
			t.Errorf("entries[%q] = %q, want %q", path, entries[path], cat)
		}
	}
}

// TestPipeline_RateLimit verifies a folder already awaiting a re-fetch is
// not asked again.
func TestPipeline_RateLimit(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{gate: make(chan struct{})}

	refreshed := make(chan string, 2)
	cfg := quietConfig()
	cfg.OnRefreshed = func(folderID string) { refreshed <- folderID }

	p, err := New(store, source, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startPipeline(t, p)

	p.Dispatch(Event{Type: RemoteSequenceChanged, FolderID: "docs", Sequence: 7})
	p.Dispatch(Event{Type: LocalChangeDetected, FolderID: "docs"})

	// Both events invalidate, the fetch gate holds the first request
	// open, so the second event must not start another fetch.
	deadline := time.After(5 * time.Second)
	for store.invalidateCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for invalidations")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if n := source.fetches.Load(); n != 1 {
		t.Errorf("Fetch count = %d, want 1 (in-flight folder not re-asked)", n)
	}

	close(source.gate)
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for refresh after gate release")
	}
}

// TestPipeline_InFlightTimeout verifies a lost response cannot deadlock
// refreshes: after the timeout the folder may be asked again.
func TestPipeline_InFlightTimeout(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{gate: make(chan struct{})}

	cfg := quietConfig()
	p, err := New(store, source, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	base := time.Now()
	var offset atomic.Int64
	p.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }

	startPipeline(t, p)

	p.Dispatch(Event{Type: TransferFinished, FolderID: "docs"})

	deadline := time.After(5 * time.Second)
	for source.fetches.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for first fetch")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The first response never arrives. Past the timeout a new event
	// starts a fresh fetch.
	offset.Store(int64(cfg.InFlightTimeout + time.Second))
	p.Dispatch(Event{Type: TransferFinished, FolderID: "docs"})

	deadline = time.After(5 * time.Second)
	for source.fetches.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Fetch count = %d, want 2 after in-flight timeout", source.fetches.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(source.gate)
}

// TestPipeline_FetchError verifies a failed re-fetch surfaces through the
// error hook and performs no upsert.
func TestPipeline_FetchError(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{err: errors.New("connection refused")}

	failed := make(chan string, 1)
	cfg := quietConfig()
	cfg.OnFetchError = func(folderID string, err error) { failed <- folderID }
	cfg.OnRefreshed = func(folderID string) { t.Error("OnRefreshed should not run on fetch failure") }

	p, err := New(store, source, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startPipeline(t, p)

	p.Dispatch(Event{Type: TransferStarted, FolderID: "docs"})

	select {
	case folder := <-failed:
		if folder != "docs" {
			t.Errorf("Failed folder = %q, want docs", folder)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for fetch error")
	}

	if store.upsertFor("docs") != nil {
		t.Error("No upsert should happen on fetch failure")
	}
}

// TestPipeline_DuplicateResultIsNoOp verifies re-applying an identical
// result leaves observable state unchanged.
func TestPipeline_DuplicateResultIsNoOp(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		needed: category.NeededFiles{Queued: []string{"q.bin"}},
	}

	refreshed := make(chan string, 2)
	cfg := quietConfig()
	cfg.OnRefreshed = func(folderID string) { refreshed <- folderID }

	p, err := New(store, source, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startPipeline(t, p)

	for i := 0; i < 2; i++ {
		p.Dispatch(Event{Type: RemoteSequenceChanged, FolderID: "docs"})
		select {
		case <-refreshed:
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for refresh")
		}
	}

	entries := store.upsertFor("docs")
	if len(entries) != 1 || entries["q.bin"] != category.Queued {
		t.Errorf("Entries after duplicate apply = %v, want {q.bin: queued}", entries)
	}
}
