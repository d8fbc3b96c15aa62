package geoindex

import (
	"context"
	"sort"
	"sync"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/ports"
)

// MemoryIndex is an in-process ports.GeoIndex for tests and single-node
// setups. It does a linear scan per query, which is fine at these sizes.
type MemoryIndex struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	staleAfter time.Duration
}

type memoryEntry struct {
	point      geo.Point
	recordedAt time.Time
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(staleAfter time.Duration) *MemoryIndex {
	return &MemoryIndex{
		entries:    make(map[string]memoryEntry),
		staleAfter: staleAfter,
	}
}

var _ ports.GeoIndex = (*MemoryIndex)(nil)

// Update stores the worker's coordinates, keeping the newer of two reports.
func (m *MemoryIndex) Update(_ context.Context, workerID string, p geo.Point, recordedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries[workerID]; ok && cur.recordedAt.After(recordedAt) {
		return nil
	}
	m.entries[workerID] = memoryEntry{point: p, recordedAt: recordedAt}
	return nil
}

// Remove drops the worker from the index.
func (m *MemoryIndex) Remove(_ context.Context, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, workerID)
	return nil
}

// Nearby returns workers within radiusKM of center, nearest first, skipping
// entries older than the staleness window.
func (m *MemoryIndex) Nearby(_ context.Context, center geo.Point, radiusKM float64, limit int) ([]ports.NearbyWorker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-m.staleAfter)
	out := make([]ports.NearbyWorker, 0, len(m.entries))
	for id, e := range m.entries {
		if e.recordedAt.Before(cutoff) {
			continue
		}
		dist := geo.HaversineKM(center, e.point)
		if dist > radiusKM {
			continue
		}
		out = append(out, ports.NearbyWorker{
			WorkerID:   id,
			Point:      e.point,
			DistanceKM: dist,
			RecordedAt: e.recordedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
