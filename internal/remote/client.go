// Package remote provides the HTTP client for the sync daemon's REST API.
//
// The client is the status source behind the out-of-sync cache: it
// fetches a folder's needed files (paginated), its locally-changed paths,
// subscribes to the daemon's event stream, and can trigger folder
// rescans. Authentication is an API key header.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/category"
	"golang.org/x/mod/semver"
)

// minLocalChangedVersion is the first daemon release exposing the
// locally-changed endpoint.
const minLocalChangedVersion = "v1.14.0"

// defaultPerPage is the page size for paginated status queries.
const defaultPerPage = 100

// Config holds client configuration.
type Config struct {
	// BaseURL is the daemon's API root, e.g. "http://127.0.0.1:8384".
	BaseURL string

	// APIKey is sent as the X-API-Key header on every request.
	APIKey string

	// Timeout bounds each HTTP request. Long-poll event requests get
	// their own, longer deadline. Default 30s.
	Timeout time.Duration

	// PerPage overrides the page size for paginated queries.
	PerPage int

	// Logger for client activity.
	Logger *log.Logger
}

// Client talks to the sync daemon.
//
// Methods may block on the network; callers run them off the UI event
// loop and deliver results back as messages.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	poll    *http.Client // no request timeout; long polls bound by context
	perPage int
	logger  *log.Logger

	// version caches the daemon version after the first query.
	// versionMu guards it: fetches run concurrently from pipeline
	// workers, one per folder.
	versionMu sync.Mutex
	version   string
}

// NewClient creates a daemon API client.
func NewClient(config *Config) (*Client, error) {
	if config == nil || config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perPage := config.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		http:    &http.Client{Timeout: timeout},
		poll:    &http.Client{},
		perPage: perPage,
		logger:  logger,
	}, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doGet(ctx, c.http, path, query, out)
}

// getLongPoll is get without the per-request timeout; the context bounds
// the poll instead.
func (c *Client) getLongPoll(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doGet(ctx, c.poll, path, query, out)
}

func (c *Client) doGet(ctx context.Context, client *http.Client, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: daemon returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// post performs an authenticated POST with no body.
func (c *Client) post(ctx context.Context, path string, query url.Values) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: daemon returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// fileRef is one file entry in a status response.
type fileRef struct {
	Name string `json:"name"`
}

// neededPage is one page of the needed-files response.
type neededPage struct {
	Progress []fileRef `json:"progress"`
	Queued   []fileRef `json:"queued"`
	Rest     []fileRef `json:"rest"`
	Page     int       `json:"page"`
	PerPage  int       `json:"perpage"`
}

// FetchNeeded returns the folder's needed files, flattened across pages.
//
// Pages are requested until one comes back smaller than the page size.
func (c *Client) FetchNeeded(ctx context.Context, folderID string) (category.NeededFiles, error) {
	var out category.NeededFiles

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("folder", folderID)
		q.Set("page", strconv.Itoa(page))
		q.Set("perpage", strconv.Itoa(c.perPage))

		var resp neededPage
		if err := c.get(ctx, "/rest/db/need", q, &resp); err != nil {
			return category.NeededFiles{}, err
		}

		for _, f := range resp.Progress {
			out.InProgress = append(out.InProgress, f.Name)
		}
		for _, f := range resp.Queued {
			out.Queued = append(out.Queued, f.Name)
		}
		for _, f := range resp.Rest {
			out.Rest = append(out.Rest, f.Name)
		}

		if len(resp.Progress)+len(resp.Queued)+len(resp.Rest) < c.perPage {
			return out, nil
		}
	}
}

// localChangedPage is one page of the locally-changed response.
type localChangedPage struct {
	Files   []fileRef `json:"files"`
	Page    int       `json:"page"`
	PerPage int       `json:"perpage"`
}

// FetchLocallyChanged returns paths changed locally but not yet accepted
// by the remote side.
//
// Daemons older than the endpoint report no locally-changed paths rather
// than an error.
func (c *Client) FetchLocallyChanged(ctx context.Context, folderID string) ([]string, error) {
	supported, err := c.SupportsLocalChanged(ctx)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, nil
	}

	var paths []string
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("folder", folderID)
		q.Set("page", strconv.Itoa(page))
		q.Set("perpage", strconv.Itoa(c.perPage))

		var resp localChangedPage
		if err := c.get(ctx, "/rest/db/localchanged", q, &resp); err != nil {
			return nil, err
		}

		for _, f := range resp.Files {
			paths = append(paths, f.Name)
		}

		if len(resp.Files) < c.perPage {
			return paths, nil
		}
	}
}

// Version returns the daemon's reported version, cached after the first
// successful query. Safe for concurrent use; the lock is held across the
// first fetch so racing callers produce a single request. A failed fetch
// is not cached and the next caller retries.
func (c *Client) Version(ctx context.Context) (string, error) {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()

	if c.version != "" {
		return c.version, nil
	}

	var resp struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/rest/system/version", nil, &resp); err != nil {
		return "", err
	}

	v := resp.Version
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	c.version = v
	return v, nil
}

// SupportsLocalChanged reports whether the daemon is new enough to serve
// the locally-changed endpoint.
func (c *Client) SupportsLocalChanged(ctx context.Context) (bool, error) {
	v, err := c.Version(ctx)
	if err != nil {
		return false, err
	}
	if !semver.IsValid(v) {
		// Dev builds report non-release versions; assume current.
		return true, nil
	}
	return semver.Compare(v, minLocalChangedVersion) >= 0, nil
}

// Rescan asks the daemon to rescan a folder, or all folders when folderID
// is empty.
func (c *Client) Rescan(ctx context.Context, folderID string) error {
	q := url.Values{}
	if folderID != "" {
		q.Set("folder", folderID)
	}
	return c.post(ctx, "/rest/db/scan", q)
}
