package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// maxFeedBytes bounds a single feed body.
const maxFeedBytes = 16 << 20

// Source represents a single ICS subscription.
type Source struct {
	// ID prefixes the ids of the events the feed produces.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// validators holds the HTTP cache metadata and body of a feed's last
// successful response.
type validators struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher fetches ICS feeds with conditional requests. Validators live in
// memory for the lifetime of the process.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]validators
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient; request
// deadlines come from the caller's context.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, cache: make(map[string]validators)}
}

// Fetch returns the body of src. A 304 reuses the body of the last 200; any
// failure returns an error and never a stale body.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (body []byte, fromCache bool, err error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, false, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, false, redactError("parse", src.URL, err)
	}
	req.Header.Set("Accept", "text/calendar")

	f.mu.Lock()
	cached, hasCache := f.cache[src.URL]
	f.mu.Unlock()
	if hasCache {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, redactError("get", src.URL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
		if err != nil {
			return nil, false, err
		}
		if len(body) > maxFeedBytes {
			return nil, false, fmt.Errorf("feed exceeds %d bytes", maxFeedBytes)
		}
		etag, lastModified := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
		f.mu.Lock()
		if etag != "" || lastModified != "" {
			f.cache[src.URL] = validators{etag: etag, lastModified: lastModified, body: body}
		} else {
			delete(f.cache, src.URL)
		}
		f.mu.Unlock()
		return body, false, nil

	case http.StatusNotModified:
		if !hasCache || len(cached.body) == 0 {
			return nil, false, errors.New("received 304 Not Modified but no cached body available")
		}
		return cached.body, true, nil

	default:
		return nil, false, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

// redactURL hides everything after the host so feed tokens never reach logs.
//
//	https://calendar.example.com/private/abcd/basic.ics -> https://calendar.example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "ics://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	return scheme + "://" + host + redactedSuffix
}

// redactError rewrites a *url.Error, whose text carries the full feed URL,
// so that only the host survives. The cause stays reachable for errors.Is.
func redactError(op, rawURL string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s %s: %w", op, redactURL(rawURL), uerr.Err)
	}
	return err
}

// fetchTimeout is used when the provider is constructed without one.
const fetchTimeout = 10 * time.Second
