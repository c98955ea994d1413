package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBucketURL is the public Open Buildings v3 polygon shard root.
const DefaultBucketURL = "https://storage.googleapis.com/open-buildings-data/v3/polygons_s2_level_6_gzip_no_header"

const (
	headTimeout = 30 * time.Second
	getTimeout  = 10 * time.Minute
)

// HTTPStore reads objects from a public bucket over plain HTTP(S).
type HTTPStore struct {
	baseURL string
	head    *http.Client
	get     *http.Client
}

// NewHTTPStore creates a store rooted at baseURL. An empty baseURL uses
// the public Open Buildings bucket.
func NewHTTPStore(baseURL string) *HTTPStore {
	if baseURL == "" {
		baseURL = DefaultBucketURL
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		head:    &http.Client{Timeout: headTimeout},
		get:     &http.Client{Timeout: getTimeout},
	}
}

// URL returns the full object URL for a key.
func (s *HTTPStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Size returns the object's Content-Length via a HEAD request, or
// SizeUnknown. A missing object returns ErrObjectNotFound.
func (s *HTTPStore) Size(ctx context.Context, key string) (int64, error) {
	resp, err := s.doHead(ctx, key)
	if err != nil {
		return SizeUnknown, err
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		// GCS answers 403 for anonymous HEAD on missing objects in some
		// bucket configurations; treat both as absent.
		return SizeUnknown, ErrObjectNotFound
	default:
		return SizeUnknown, fmt.Errorf("HEAD %s: unexpected status %s", key, resp.Status)
	}
	if resp.ContentLength < 0 {
		return SizeUnknown, nil
	}
	return resp.ContentLength, nil
}

// Open streams the object. The second return value is the total size
// from Content-Length, or SizeUnknown.
func (s *HTTPStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(key), nil)
	if err != nil {
		return nil, SizeUnknown, err
	}
	resp, err := s.get.Do(req)
	if err != nil {
		return nil, SizeUnknown, fmt.Errorf("GET %s: %w", key, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, SizeUnknown, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, SizeUnknown, fmt.Errorf("GET %s: unexpected status %s", key, resp.Status)
	}
	size := resp.ContentLength
	if size < 0 {
		size = SizeUnknown
	}
	return resp.Body, size, nil
}

func (s *HTTPStore) doHead(ctx context.Context, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.head.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %s: %w", key, err)
	}
	return resp, nil
}
