package cache

import (
	"log"
	"sync"

	"github.com/cmkbridge/cmkbridge/internal/database"
)

// Snapshotter provides the joined problem/request rows the cache holds.
// Implemented by database.Store.
type Snapshotter interface {
	SnapshotLinks() ([]database.LinkSnapshot, error)
}

// ProblemCache is an in-memory materialized view of the link store. It is
// refreshed wholesale by a poller and read by the ingestion pipeline and the
// reconciliation loop. Single writer, many readers: each refresh builds a
// complete new snapshot and swaps it in, so readers never observe a
// half-built state. Staleness is bounded by the refresh interval; the store
// remains the final word for correctness-relevant decisions.
type ProblemCache struct {
	mu          sync.RWMutex
	rows        []database.LinkSnapshot
	byProblemID map[string]int
	byRequestID map[string]int
}

// New creates an empty problem cache
func New() *ProblemCache {
	return &ProblemCache{
		byProblemID: make(map[string]int),
		byRequestID: make(map[string]int),
	}
}

// Refresh replaces the entire snapshot with the store's current view
func (c *ProblemCache) Refresh(store Snapshotter) error {
	rows, err := store.SnapshotLinks()
	if err != nil {
		return err
	}

	byProblemID := make(map[string]int, len(rows))
	byRequestID := make(map[string]int, len(rows))
	for i, row := range rows {
		byProblemID[row.ProblemID] = i
		byRequestID[row.RequestID] = i
	}

	c.mu.Lock()
	c.rows = rows
	c.byProblemID = byProblemID
	c.byRequestID = byRequestID
	c.mu.Unlock()

	log.Printf("Problem cache refreshed: %d linked problems", len(rows))
	return nil
}

// Exists reports whether a problem id is present in the current snapshot
func (c *ProblemCache) Exists(problemID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byProblemID[problemID]
	return ok
}

// ByRequestID returns the snapshot row for a remote request id, or nil if
// the request is not (yet) known to the cache.
func (c *ProblemCache) ByRequestID(requestID string) *database.LinkSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byRequestID[requestID]
	if !ok {
		return nil
	}
	row := c.rows[i]
	return &row
}

// Len returns the number of rows in the current snapshot
func (c *ProblemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
