package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/pipeline"
)

// Daemon event types the dashboard reacts to. Everything else on the
// stream is ignored.
const (
	eventItemStarted        = "ItemStarted"
	eventItemFinished       = "ItemFinished"
	eventLocalIndexUpdated  = "LocalIndexUpdated"
	eventRemoteIndexUpdated = "RemoteIndexUpdated"
)

// DaemonEvent is one entry from the daemon's event stream.
type DaemonEvent struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

// eventData covers the fields this client reads from any event payload.
type eventData struct {
	Folder   string `json:"folder"`
	Item     string `json:"item"`
	Sequence int64  `json:"sequence"`
}

// Events long-polls the daemon's event endpoint for entries after since.
//
// The call blocks until the daemon has events or its poll window closes;
// an empty slice is a normal outcome.
func (c *Client) Events(ctx context.Context, since int64) ([]DaemonEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	q.Set("timeout", "60")

	var events []DaemonEvent
	if err := c.getLongPoll(ctx, "/rest/events", q, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Translate converts a daemon event into a pipeline domain event.
// Returns false for event types the cache does not care about.
func Translate(ev DaemonEvent) (pipeline.Event, bool) {
	var data eventData
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return pipeline.Event{}, false
		}
	}
	if data.Folder == "" {
		return pipeline.Event{}, false
	}

	switch ev.Type {
	case eventItemStarted:
		return pipeline.Event{Type: pipeline.TransferStarted, FolderID: data.Folder, Path: data.Item}, true
	case eventItemFinished:
		return pipeline.Event{Type: pipeline.TransferFinished, FolderID: data.Folder, Path: data.Item}, true
	case eventLocalIndexUpdated:
		return pipeline.Event{Type: pipeline.LocalChangeDetected, FolderID: data.Folder}, true
	case eventRemoteIndexUpdated:
		return pipeline.Event{Type: pipeline.RemoteSequenceChanged, FolderID: data.Folder, Sequence: data.Sequence}, true
	default:
		return pipeline.Event{}, false
	}
}

// StreamEvents long-polls the event endpoint until ctx is cancelled,
// dispatching every translatable event.
//
// Poll failures are logged and retried after a short pause; the stream
// resumes from the last seen event ID, so a dropped poll loses nothing.
func (c *Client) StreamEvents(ctx context.Context, dispatch func(pipeline.Event)) {
	var since int64

	for {
		events, err := c.Events(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Printf("Event poll failed: %v", err)
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		for _, ev := range events {
			if ev.ID > since {
				since = ev.ID
			}
			if domainEv, ok := Translate(ev); ok {
				dispatch(domainEv)
			}
		}
	}
}
