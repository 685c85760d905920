// Package pipeline consumes sync-engine events and keeps the sync-state
// cache fresh.
//
// Every domain event (transfer started/finished, local change, remote
// sequence change) invalidates the affected folder's cached categories
// and schedules a re-fetch from the status source. Fetches run on worker
// goroutines; their results come back as messages onto the same
// single-consumer loop that performs all cache writes, so no two
// mutations race.
//
// Invalidation is coarse-grained per folder: the categorization re-fetch
// is cheap, which makes per-path invalidation unnecessary complexity.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/category"
)

// EventType identifies a sync-engine domain event.
type EventType int

const (
	// TransferStarted means the daemon began transferring an item.
	TransferStarted EventType = iota
	// TransferFinished means an item transfer completed.
	TransferFinished
	// LocalChangeDetected means something under the folder root changed
	// locally.
	LocalChangeDetected
	// RemoteSequenceChanged means the remote index moved.
	RemoteSequenceChanged
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case TransferStarted:
		return "transfer-started"
	case TransferFinished:
		return "transfer-finished"
	case LocalChangeDetected:
		return "local-change"
	case RemoteSequenceChanged:
		return "remote-sequence"
	default:
		return "unknown"
	}
}

// Event is one sync-engine domain event.
type Event struct {
	// Type is the event kind.
	Type EventType
	// FolderID is the affected folder.
	FolderID string
	// Path is set for transfer events.
	Path string
	// Sequence is set for remote sequence events.
	Sequence int64
}

// StatusSource fetches per-folder sync status from the remote daemon.
//
// Implemented by remote.Client. Both calls may block on the network and
// are only ever invoked from worker goroutines, never from the event
// loop.
type StatusSource interface {
	// FetchNeeded returns the folder's needed files, flattened across
	// pages.
	FetchNeeded(ctx context.Context, folderID string) (category.NeededFiles, error)

	// FetchLocallyChanged returns paths changed locally but not yet
	// accepted remotely.
	FetchLocallyChanged(ctx context.Context, folderID string) ([]string, error)
}

// StateStore is the slice of the cache the pipeline writes.
type StateStore interface {
	UpsertCategories(ctx context.Context, folderID string, entries map[string]category.Category) error
	Invalidate(ctx context.Context, folderID string) error
}

// Config holds pipeline configuration.
type Config struct {
	// InFlightTimeout bounds how long a folder stays marked as awaiting
	// a re-fetch. After it elapses the folder may be asked again, so a
	// lost response cannot deadlock refreshes. Default 30s.
	InFlightTimeout time.Duration

	// LocalExists refines rest-bucket paths into Modified when a local
	// copy exists. Optional.
	LocalExists category.LocalChecker

	// OnRefreshed runs on the event loop after a folder's categories
	// were re-upserted. Wire it to the browse controller's Reapply.
	// Optional.
	OnRefreshed func(folderID string)

	// OnFetchError runs on the event loop when a re-fetch fails. Wire
	// it to a transient toast. The filter mode is not cleared: the UI
	// keeps whatever is already cached. Optional.
	OnFetchError func(folderID string, err error)

	// Logger for pipeline activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InFlightTimeout: 30 * time.Second,
		Logger:          log.New(os.Stderr, "[pipeline] ", log.LstdFlags),
	}
}

// fetchResult carries a completed re-fetch back onto the event loop.
type fetchResult struct {
	folderID       string
	needed         category.NeededFiles
	locallyChanged []string
	err            error
}

// Pipeline is the invalidation and refresh loop.
type Pipeline struct {
	store  StateStore
	source StatusSource
	config *Config

	events  chan Event
	results chan fetchResult

	// inflight tracks folders awaiting a re-fetch, keyed by folder with
	// the request start time. Owned by the loop goroutine.
	inflight map[string]time.Time

	// now is the clock for in-flight bookkeeping. Tests replace it.
	now func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline over the given store and status source.
func New(store StateStore, source StatusSource, config *Config) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.InFlightTimeout <= 0 {
		config.InFlightTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}

	return &Pipeline{
		store:    store,
		source:   source,
		config:   config,
		events:   make(chan Event, 100),
		results:  make(chan fetchResult, 100),
		inflight: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Dispatch queues a domain event for processing.
//
// Safe to call from any goroutine. Drops the event with a log line if the
// queue is full; a missed invalidation is repaired by the next triggering
// event or by TTL expiry.
func (p *Pipeline) Dispatch(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.config.Logger.Printf("Event queue full, dropping %s for %s", ev.Type, ev.FolderID)
	}
}

// Run drives the event loop until ctx is cancelled.
//
// All cache writes and all callbacks happen on this goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.config.Logger.Println("Pipeline started")

	for {
		select {
		case <-ctx.Done():
			p.config.Logger.Println("Pipeline stopping")
			p.wg.Wait()
			return nil

		case ev := <-p.events:
			p.handleEvent(ctx, ev)

		case res := <-p.results:
			p.handleResult(ctx, res)
		}
	}
}

// Stop cancels the event loop.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// handleEvent invalidates the folder and schedules a re-fetch.
func (p *Pipeline) handleEvent(ctx context.Context, ev Event) {
	if ev.FolderID == "" {
		return
	}

	p.config.Logger.Printf("Event %s for %s", ev.Type, ev.FolderID)

	if err := p.store.Invalidate(ctx, ev.FolderID); err != nil {
		// Fail open: stale entries age out through the TTL.
		p.config.Logger.Printf("Invalidate %s failed: %v", ev.FolderID, err)
	}

	p.scheduleRefetch(ctx, ev.FolderID)
}

// scheduleRefetch starts a re-fetch for the folder unless one is already
// in flight and younger than the timeout.
func (p *Pipeline) scheduleRefetch(ctx context.Context, folderID string) {
	if started, ok := p.inflight[folderID]; ok {
		if p.now().Sub(started) < p.config.InFlightTimeout {
			return
		}
		p.config.Logger.Printf("Re-fetch for %s timed out, retrying", folderID)
	}
	p.inflight[folderID] = p.now()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.fetch(ctx, folderID)
	}()
}

// fetch runs on a worker goroutine and posts its result back to the loop.
func (p *Pipeline) fetch(ctx context.Context, folderID string) {
	res := fetchResult{folderID: folderID}

	needed, err := p.source.FetchNeeded(ctx, folderID)
	if err != nil {
		res.err = fmt.Errorf("fetch needed for %s: %w", folderID, err)
	} else {
		res.needed = needed

		changed, err := p.source.FetchLocallyChanged(ctx, folderID)
		if err != nil {
			res.err = fmt.Errorf("fetch locally changed for %s: %w", folderID, err)
		} else {
			res.locallyChanged = changed
		}
	}

	select {
	case p.results <- res:
	case <-ctx.Done():
	}
}

// handleResult applies a completed re-fetch: categorize, upsert, and let
// the browser re-apply its overlay.
//
// Results may arrive out of order or in duplicate; the clear-then-insert
// upsert makes the last-applied result win and re-applying an identical
// one a no-op.
func (p *Pipeline) handleResult(ctx context.Context, res fetchResult) {
	delete(p.inflight, res.folderID)

	if res.err != nil {
		p.config.Logger.Printf("Re-fetch failed: %v", res.err)
		if p.config.OnFetchError != nil {
			p.config.OnFetchError(res.folderID, res.err)
		}
		// No retry schedule: the next triggering event re-fetches.
		return
	}

	entries := category.Categorize(res.needed, res.locallyChanged, p.config.LocalExists)

	if err := p.store.UpsertCategories(ctx, res.folderID, entries); err != nil {
		p.config.Logger.Printf("Upsert for %s failed: %v", res.folderID, err)
		if p.config.OnFetchError != nil {
			p.config.OnFetchError(res.folderID, err)
		}
		return
	}

	p.config.Logger.Printf("Refreshed %s: %d out-of-sync paths", res.folderID, len(entries))

	if p.config.OnRefreshed != nil {
		p.config.OnRefreshed(res.folderID)
	}
}
