package service

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/joeblew999/plat-buildings/internal/storage"
)

func gzipBytes(t *testing.T, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchDownloadsShard(t *testing.T) {
	payload := gzipBytes(t, []byte("row data"))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/89c25_buildings.csv.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer ts.Close()

	dir := t.TempDir()
	f := NewShardFetcher(storage.NewHTTPStore(ts.URL), dir)

	var lastRead, lastTotal int64
	path, err := f.Fetch(context.Background(), "89c25", func(read, total int64) {
		lastRead, lastTotal = read, total
	})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "shards", "89c25_buildings.csv.gz") {
		t.Fatalf("path=%q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("downloaded content mismatch")
	}
	if lastRead != int64(len(payload)) {
		t.Fatalf("final progress read=%d, want %d", lastRead, len(payload))
	}
	if lastTotal != int64(len(payload)) {
		t.Fatalf("final progress total=%d, want %d", lastTotal, len(payload))
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	payload := gzipBytes(t, []byte("cached"))
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(payload)
	}))
	defer ts.Close()

	f := NewShardFetcher(storage.NewHTTPStore(ts.URL), t.TempDir())

	first, err := f.Fetch(context.Background(), "89c25", nil)
	if err != nil {
		t.Fatal(err)
	}
	afterFirst := atomic.LoadInt32(&requests)

	second, err := f.Fetch(context.Background(), "89c25", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if n := atomic.LoadInt32(&requests); n != afterFirst {
		t.Fatalf("requests=%d after second call, want %d (cache hit must stay off the network)", n, afterFirst)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatal("cache content changed between calls")
	}
}

func TestFetchMissingShard(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dir := t.TempDir()
	f := NewShardFetcher(storage.NewHTTPStore(ts.URL), dir)

	_, err := f.Fetch(context.Background(), "deadbeef", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	// no file may be left behind
	if _, err := os.Stat(filepath.Join(dir, "shards", "deadbeef_buildings.csv.gz")); !os.IsNotExist(err) {
		t.Fatal("partial file left after NotFound")
	}
}

func TestFetchTransferFailureCleansUp(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are sent so the client hits an
		// unexpected EOF mid-transfer.
		w.Header().Set("Content-Length", "100000")
		w.Write(bytes.Repeat([]byte("x"), 10))
	}))
	defer ts.Close()

	dir := t.TempDir()
	f := NewShardFetcher(storage.NewHTTPStore(ts.URL), dir)

	_, err := f.Fetch(context.Background(), "89c25", nil)
	if err == nil {
		t.Fatal("expected transfer error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want a transfer error, not ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "shards", "89c25_buildings.csv.gz")); !os.IsNotExist(err) {
		t.Fatal("partial file left after transfer failure")
	}
}

func TestFetchUnknownSizeReportsByteCounter(t *testing.T) {
	payload := gzipBytes(t, bytes.Repeat([]byte("data "), 100_000))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked transfer: no Content-Length.
		fl := w.(http.Flusher)
		for i := 0; i < len(payload); i += 4096 {
			end := i + 4096
			if end > len(payload) {
				end = len(payload)
			}
			w.Write(payload[i:end])
			fl.Flush()
		}
	}))
	defer ts.Close()

	f := NewShardFetcher(storage.NewHTTPStore(ts.URL), t.TempDir())

	var sawUnknown bool
	var lastRead int64
	_, err := f.Fetch(context.Background(), "89c25", func(read, total int64) {
		if total == storage.SizeUnknown {
			sawUnknown = true
		}
		lastRead = read
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sawUnknown {
		t.Fatal("expected SizeUnknown total for chunked response")
	}
	if lastRead != int64(len(payload)) {
		t.Fatalf("final read=%d, want %d", lastRead, len(payload))
	}
}
