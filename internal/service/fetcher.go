package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joeblew999/plat-buildings/internal/storage"
)

const (
	// fetchChunkSize is the transfer chunk size for shard downloads.
	fetchChunkSize = 8 * 1024

	// progressEvery throttles progress reports to one per N chunks so a
	// large shard does not cause an SSE update storm.
	progressEvery = 16
)

// TransferFunc receives throttled download progress. total is
// storage.SizeUnknown when the remote size is not reported, in which
// case read is an unbounded byte counter.
type TransferFunc func(read, total int64)

// ShardFetcher downloads building shards into a local cache directory.
type ShardFetcher struct {
	store     storage.ObjectStore
	shardsDir string
}

// NewShardFetcher creates a fetcher caching under dataDir/shards.
func NewShardFetcher(store storage.ObjectStore, dataDir string) *ShardFetcher {
	return &ShardFetcher{
		store:     store,
		shardsDir: filepath.Join(dataDir, "shards"),
	}
}

// ShardsDir returns the local shard cache directory.
func (f *ShardFetcher) ShardsDir() string {
	return f.shardsDir
}

// CompressedPath returns the local cache path for a cell token.
func (f *ShardFetcher) CompressedPath(token string) string {
	return filepath.Join(f.shardsDir, token+"_buildings.csv.gz")
}

// Fetch downloads the shard for one cell token and returns its local
// path. It is idempotent: an existing cache file is returned as-is with
// no network traffic. The remote size is taken from a HEAD request
// before the transfer starts, so a missing object returns ErrNotFound
// without opening a download and leaves no file behind; any other
// transfer error removes the partial file and is surfaced without
// retry.
func (f *ShardFetcher) Fetch(ctx context.Context, token string, onProgress TransferFunc) (string, error) {
	dest := f.CompressedPath(token)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	key := token + "_buildings.csv.gz"
	total, err := f.store.Size(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("shard %s: %w", token, ErrNotFound)
		}
		return "", err
	}

	if err := os.MkdirAll(f.shardsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	src, openTotal, err := f.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("shard %s: %w", token, ErrNotFound)
		}
		return "", err
	}
	defer src.Close()
	if openTotal != storage.SizeUnknown {
		total = openTotal
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if err := copyChunks(src, out, total, onProgress); err != nil {
		out.Close()
		f.discard(dest)
		return "", fmt.Errorf("shard %s transfer failed: %w", token, err)
	}

	if err := out.Close(); err != nil {
		f.discard(dest)
		return "", err
	}
	return dest, nil
}

// copyChunks streams src to out in fixed-size chunks, syncing each chunk
// and reporting throttled progress.
func copyChunks(src io.Reader, out *os.File, total int64, onProgress TransferFunc) error {
	buf := make([]byte, fetchChunkSize)
	var read int64
	chunks := 0

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			if serr := out.Sync(); serr != nil {
				return serr
			}
			read += int64(n)
			chunks++
			if onProgress != nil && chunks%progressEvery == 0 {
				onProgress(read, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if onProgress != nil {
		onProgress(read, total)
	}
	return nil
}

// discard removes a partial download, logging a cleanup failure without
// masking the original error.
func (f *ShardFetcher) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove partial shard %s: %v", path, err)
	}
}
