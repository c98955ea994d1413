package service

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb"
)

// Session is the explicit application state for one interactive user.
// Each field is written only by the pipeline stage that produces it:
// region selection sets Region*, covering sets Tokens, the fetch action
// sets Result and the imagery lookup sets ImageryDates. The mutex also
// serializes pipeline runs, so two fetches of the same missing shard
// cannot interleave within one process.
type Session struct {
	mu sync.Mutex

	RegionName   string
	Region       orb.Geometry
	Tokens       []string
	Result       *FilterResult
	ImageryDates []string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Lock acquires the session for a pipeline run or a state mutation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// SelectRegion stores a newly chosen region feature and clears all the
// state derived from the previous selection.
func (s *Session) SelectRegion(name string, g orb.Geometry, tokens []string) {
	s.RegionName = name
	s.Region = g
	s.Tokens = tokens
	s.Result = nil
	s.ImageryDates = nil
}

// Summary returns the REST view of the current state. Mean confidence
// is reported as 0 when there is no filtered row (NaN does not survive
// JSON encoding).
func (s *Session) Summary() Summary {
	sum := Summary{Region: s.RegionName, Tokens: s.Tokens}
	if s.Result != nil {
		sum.HasResult = true
		sum.Count = s.Result.Count
		if s.Result.Count > 0 {
			sum.MeanConfidence = s.Result.MeanConfidence
		}
	}
	return sum
}

// ClearCache removes every file in dir, best effort. A new region query
// invalidates the whole shard cache this way before downloading.
func ClearCache(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("failed to remove cached shard %s: %v", path, err)
		}
	}
}
