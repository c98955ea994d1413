package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-buildings/internal/storage"
)

// ProgressFunc is called with coarse progress updates during a pipeline
// run. progress is 0-100.
type ProgressFunc func(progress int, status string)

// RegisterShardFunc is called for each decompressed shard CSV so it can
// be exposed elsewhere (the DuckDB view registration hooks in here).
type RegisterShardFunc func(token, csvPath string) error

// Explorer runs the full pipeline for a region: cover, fetch each
// shard, decompress, load, and filter the union of rows. One region at
// a time, shards in covering order, nothing overlapped.
type Explorer struct {
	fetcher *ShardFetcher

	// RegisterShard, when set, is invoked per decompressed shard.
	// Registration failures are logged, not fatal.
	RegisterShard RegisterShardFunc

	// DropShards, when set, is invoked when the shard cache is
	// invalidated, so registered shard views do not outlive the CSVs
	// they point at.
	DropShards func() error
}

// NewExplorer creates an Explorer caching shards under dataDir/shards.
func NewExplorer(store storage.ObjectStore, dataDir string) *Explorer {
	return &Explorer{fetcher: NewShardFetcher(store, dataDir)}
}

// Fetcher exposes the underlying shard fetcher.
func (e *Explorer) Fetcher() *ShardFetcher {
	return e.fetcher
}

// InvalidateCache removes every cached shard file and drops whatever
// was registered over them. A new region query calls this before
// downloading.
func (e *Explorer) InvalidateCache() {
	ClearCache(e.fetcher.ShardsDir())
	if e.DropShards != nil {
		if err := e.DropShards(); err != nil {
			log.Printf("failed to drop shard registrations: %v", err)
		}
	}
}

// Run executes the pipeline for an already-validated polygonal region.
// Cells whose shard is absent remotely are skipped; it is an error only
// when no shard could be loaded at all. Any transfer or parse failure
// aborts the run.
func (e *Explorer) Run(ctx context.Context, region orb.Geometry, onProgress ProgressFunc) (*FilterResult, error) {
	tokens := CoverGeometry(region)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty covering for region")
	}

	report := func(p int, status string) {
		if onProgress != nil {
			onProgress(p, status)
		}
	}

	var all []Building
	loaded := 0
	for i, token := range tokens {
		base := i * 90 / len(tokens)
		span := 90 / len(tokens)
		report(base, fmt.Sprintf("Downloading shard %s (%d/%d)...", token, i+1, len(tokens)))

		gzPath, err := e.fetcher.Fetch(ctx, token, func(read, total int64) {
			if total > 0 {
				frac := float64(read) / float64(total)
				report(base+int(frac*float64(span)), fmt.Sprintf(
					"Shard %s: %.1f of %.1f MB (%.0f%%)",
					token, float64(read)/1e6, float64(total)/1e6, frac*100))
			} else {
				report(base, fmt.Sprintf("Shard %s: %.1f MB...", token, float64(read)/1e6))
			}
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Printf("no shard for cell %s, skipping", token)
				continue
			}
			return nil, err
		}

		// Keep the compressed file so a repeat fetch stays a cache hit.
		csvPath, err := Decompress(gzPath, false)
		if err != nil {
			return nil, err
		}

		if e.RegisterShard != nil {
			if err := e.RegisterShard(token, csvPath); err != nil {
				log.Printf("failed to register shard %s: %v", token, err)
			}
		}

		rows, err := LoadShard(csvPath)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no shard available for any covering cell: %w", ErrNotFound)
	}

	report(95, "Filtering buildings...")
	result := Filter(all, region)
	report(100, fmt.Sprintf("%d buildings intersect the region", result.Count))
	return &result, nil
}
