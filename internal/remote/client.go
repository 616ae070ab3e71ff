// Package remote reads an exported record set over HTTP, mirroring the
// on-disk layout under a base URL. Lookups fall back through a bounded
// set of alternative address shapes and ultimately synthesize a
// placeholder record, preferring availability over failure. Every
// outcome is cached per client; misses are never retried within one
// client lifetime.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/politpatrick/icf-api/internal/export"
	"github.com/politpatrick/icf-api/internal/record"
	"github.com/politpatrick/icf-api/internal/store"
)

// Client fetches index and records from a remote export root. It
// implements store.Source, so derived views run unchanged against it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	log        *slog.Logger
	stats      *FetchStats

	mu    sync.Mutex
	index map[string]string
	cache map[string]*record.Record
}

func NewClient(baseURL string, timeout time.Duration, retries int, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		log:        log,
		stats:      NewFetchStats(time.Hour),
		cache:      make(map[string]*record.Record),
	}
}

// Stats returns the rolling fetch-latency recorder for this client.
func (c *Client) Stats() *FetchStats {
	return c.stats
}

// Index fetches and caches index.json.
func (c *Client) Index(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	cached := c.index
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	body, found, err := c.fetch(ctx, export.IndexFile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("index.json not found at %s", c.baseURL)
	}
	var index map[string]string
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return index, nil
}

// Get retrieves the record for a code. Unknown codes (no index entry)
// are store.ErrNotFound; an indexed record whose retrieval misses goes
// through the fallback shapes and ends in a placeholder.
func (c *Client) Get(ctx context.Context, code string) (*record.Record, error) {
	index, err := c.Index(ctx)
	if err != nil {
		return nil, err
	}
	rel, ok := index[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, code)
	}
	return c.lookup(ctx, rel, code)
}

// GetPath retrieves a record by relative path. The code for fallback
// and placeholder purposes is the path's base name.
func (c *Client) GetPath(ctx context.Context, relPath string) (*record.Record, error) {
	code := strings.TrimSuffix(path.Base(relPath), ".json")
	return c.lookup(ctx, relPath, code)
}

// lookup resolves one record, consulting and populating the cache under
// the originally requested path. Fallback shapes are tried only for
// explicit not-found responses; transport errors propagate.
func (c *Client) lookup(ctx context.Context, relPath, code string) (*record.Record, error) {
	c.mu.Lock()
	if rec, ok := c.cache[relPath]; ok {
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	rec, err := c.fetchRecord(ctx, relPath)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		for _, alt := range fallbackPaths(relPath, code) {
			rec, err = c.fetchRecord(ctx, alt)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				c.log.Warn("record resolved via fallback path", "code", code, "requested", relPath, "found", alt)
				c.stats.RecordFallback()
				break
			}
		}
	}
	if rec == nil {
		c.log.Warn("record missing remotely, placeholder synthesized", "code", code, "path", relPath)
		c.stats.RecordPlaceholder()
		rec = record.Placeholder(code)
	}

	c.mu.Lock()
	c.cache[relPath] = rec
	c.mu.Unlock()
	return rec, nil
}

// fallbackPaths enumerates the alternative address shapes tried for a
// missing record: nested naming, flat naming, and their lower-case
// variants, minus the shape that already failed.
func fallbackPaths(requested, code string) []string {
	candidates := []string{
		code + "/" + code + ".json",
		code + ".json",
	}
	lower := strings.ToLower(code)
	if lower != code {
		candidates = append(candidates,
			lower+"/"+lower+".json",
			lower+".json",
		)
	}
	var paths []string
	for _, cand := range candidates {
		if cand != requested {
			paths = append(paths, cand)
		}
	}
	return paths
}

func (c *Client) fetchRecord(ctx context.Context, relPath string) (*record.Record, error) {
	body, found, err := c.fetch(ctx, relPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var rec record.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", relPath, err)
	}
	return &rec, nil
}

// fetch GETs one relative path. A 404 is an explicit not-found, not an
// error. Transient failures are retried with capped backoff.
func (c *Client) fetch(ctx context.Context, relPath string) (body []byte, found bool, err error) {
	url := c.baseURL + "/" + relPath

	for attempt := 0; ; attempt++ {
		body, found, err = c.doFetch(ctx, url)
		if err == nil || attempt >= c.retries || !isTransient(err) {
			return body, found, err
		}
		delay := backoff(attempt)
		c.log.Warn("fetch failed, retrying", "url", url, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (c *Client) doFetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.stats.Record(time.Since(start).Milliseconds())
	if err != nil {
		return nil, false, &transientError{fmt.Errorf("get %s: %w", url, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode >= 500:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, &transientError{fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, string(respBody))}
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, string(respBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &transientError{fmt.Errorf("read %s: %w", url, err)}
	}
	return data, true, nil
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
