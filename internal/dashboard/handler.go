// Package dashboard: event handling and message formatting for the feed.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/browse"
	"github.com/grahamwalsh/syncdeck/internal/category"
)

// BreakdownSource yields per-folder category counts.
// Implemented by cache.Store.
type BreakdownSource interface {
	Breakdown(ctx context.Context, folderID string) (map[category.Category]int, error)
}

// Handler bridges pipeline and browser callbacks to the WebSocket feed.
type Handler struct {
	server *Server
	source BreakdownSource
	logger *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server.
func NewHandler(server *Server, source BreakdownSource, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		server: server,
		source: source,
		logger: logger,
	}
}

// OnRefreshed broadcasts a folder's fresh breakdown after a cache update.
// Wire it to pipeline.Config.OnRefreshed.
func (h *Handler) OnRefreshed(folderID string) {
	counts, err := h.source.Breakdown(context.Background(), folderID)
	if err != nil {
		// Fail open: the feed just skips this snapshot.
		h.logger.Printf("Breakdown for %s failed: %v", folderID, err)
		return
	}

	data := BreakdownData{
		FolderID:  folderID,
		Counts:    make(map[string]int, len(counts)),
		AllSynced: true,
	}
	for cat, n := range counts {
		data.Counts[cat.String()] = n
		if n > 0 {
			data.AllSynced = false
		}
	}

	h.send(MessageTypeBreakdown, data)
}

// OnFetchError broadcasts a transient fetch failure.
// Wire it to pipeline.Config.OnFetchError.
func (h *Handler) OnFetchError(folderID string, err error) {
	h.send(MessageTypeFetchError, FetchErrorData{
		FolderID: folderID,
		Error:    err.Error(),
	})
}

// OnFilterState broadcasts a filter mode transition for a folder.
func (h *Handler) OnFilterState(folderID string, state browse.State) {
	h.send(MessageTypeFilterState, FilterStateData{
		FolderID: folderID,
		Mode:     state.Mode.String(),
		Query:    state.Query,
	})
}

func (h *Handler) send(typ MessageType, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
