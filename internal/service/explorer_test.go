package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeblew999/plat-buildings/internal/storage"
)

// shardServer serves gzipped CSV content per cell token and 404 for
// everything else.
func shardServer(t *testing.T, shards map[string][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for token, csv := range shards {
			if r.URL.Path == "/"+token+"_buildings.csv.gz" {
				w.Write(gzipBytes(t, csv))
				return
			}
		}
		http.NotFound(w, r)
	}))
}

func shardCSV(rows ...string) []byte {
	var buf bytes.Buffer
	for _, r := range rows {
		buf.WriteString(r)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func TestExplorerRun(t *testing.T) {
	region, err := ParseRegionWKT(squareWKT)
	if err != nil {
		t.Fatal(err)
	}

	tokens := CoverGeometry(region)
	if len(tokens) == 0 {
		t.Fatal("empty covering")
	}

	// First covering cell has three intersecting rows plus one outside
	// the region; every other cell has no remote shard and is skipped.
	shards := map[string][]byte{
		tokens[0]: shardCSV(
			`-1.0,36.1,10,0.9,"`+squareAt(36.1, -1.0, 0.0001)+`",AA`,
			`-1.0,36.11,10,0.8,"`+squareAt(36.11, -1.0, 0.0001)+`",BB`,
			`-1.0,36.12,10,0.95,"`+squareAt(36.12, -1.0, 0.0001)+`",CC`,
			`5.0,40.0,10,0.1,"`+squareAt(40.0, 5.0, 0.0001)+`",DD`,
		),
	}
	ts := shardServer(t, shards)
	defer ts.Close()

	ex := NewExplorer(storage.NewHTTPStore(ts.URL), t.TempDir())

	var registered []string
	ex.RegisterShard = func(token, csvPath string) error {
		registered = append(registered, token)
		return nil
	}

	var lastProgress int
	result, err := ex.Run(context.Background(), region, func(progress int, status string) {
		if progress < lastProgress {
			t.Fatalf("progress went backwards: %d after %d", progress, lastProgress)
		}
		lastProgress = progress
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 3 {
		t.Fatalf("count=%d, want 3", result.Count)
	}
	want := (0.9 + 0.8 + 0.95) / 3
	if math.Abs(result.MeanConfidence-want) > 1e-3 {
		t.Fatalf("mean=%v, want ~%v", result.MeanConfidence, want)
	}
	if lastProgress != 100 {
		t.Fatalf("final progress=%d, want 100", lastProgress)
	}
	if len(registered) != 1 || registered[0] != tokens[0] {
		t.Fatalf("registered shards=%v, want [%s]", registered, tokens[0])
	}
}

func TestExplorerRunAllShardsMissing(t *testing.T) {
	region, err := ParseRegionWKT(squareWKT)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ex := NewExplorer(storage.NewHTTPStore(ts.URL), t.TempDir())
	_, err = ex.Run(context.Background(), region, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound when no shard exists", err)
	}
}

func TestExplorerInvalidateCache(t *testing.T) {
	dataDir := t.TempDir()
	ex := NewExplorer(storage.NewHTTPStore("http://localhost:0"), dataDir)

	shardsDir := ex.Fetcher().ShardsDir()
	if err := os.MkdirAll(shardsDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"177_buildings.csv.gz", "177_buildings.csv"} {
		if err := os.WriteFile(filepath.Join(shardsDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dropped := false
	ex.DropShards = func() error {
		dropped = true
		return nil
	}

	ex.InvalidateCache()

	entries, err := os.ReadDir(shardsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d cached files left after invalidation", len(entries))
	}
	if !dropped {
		t.Fatal("shard registrations not dropped with the cache")
	}
}

func TestExplorerRunRepeatUsesCache(t *testing.T) {
	region, err := ParseRegionWKT(squareWKT)
	if err != nil {
		t.Fatal(err)
	}
	tokens := CoverGeometry(region)

	downloads := 0
	csv := shardCSV(`-1.0,36.1,10,0.9,"` + squareAt(36.1, -1.0, 0.0001) + `",AA`)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+tokens[0]+"_buildings.csv.gz" {
			if r.Method == http.MethodGet {
				downloads++
			}
			w.Write(gzipBytes(t, csv))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	ex := NewExplorer(storage.NewHTTPStore(ts.URL), t.TempDir())

	if _, err := ex.Run(context.Background(), region, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Run(context.Background(), region, nil); err != nil {
		t.Fatal(err)
	}
	if downloads != 1 {
		t.Fatalf("shard downloads=%d, want 1 (second run must reuse the cache)", downloads)
	}
}
