// Package memory provides in-process repositories used when no database or
// redis endpoint is configured. State does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/infra/storage"
)

type MemoryStorage struct {
	cycles    []*domain.CycleStats
	processed map[string]bool
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{processed: make(map[string]bool)}
}

// -----------------------------------------------------------------------------
// Cycle Repository
// -----------------------------------------------------------------------------

type CycleRepo struct {
	store *MemoryStorage
}

func NewCycleRepo(store *MemoryStorage) *CycleRepo {
	return &CycleRepo{store: store}
}

func (r *CycleRepo) Save(ctx context.Context, stats *domain.CycleStats) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *stats
	r.store.cycles = append(r.store.cycles, &cp)
	return nil
}

func (r *CycleRepo) GetLatest(ctx context.Context) (*domain.CycleStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if len(r.store.cycles) == 0 {
		return nil, storage.ErrCycleNotFound
	}
	latest := r.store.cycles[0]
	for _, c := range r.store.cycles[1:] {
		if c.StartTime.After(latest.StartTime) {
			latest = c
		}
	}
	cp := *latest
	return &cp, nil
}

func (r *CycleRepo) GetRecent(ctx context.Context, limit int) ([]*domain.CycleStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.CycleStats, 0, limit)
	for i := len(r.store.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.store.cycles[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *CycleRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.cycles[:0]
	removed := 0
	for _, c := range r.store.cycles {
		if c.StartTime.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	r.store.cycles = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Processed File Repository
// -----------------------------------------------------------------------------

type ProcessedRepo struct {
	store *MemoryStorage
}

func NewProcessedRepo(store *MemoryStorage) *ProcessedRepo {
	return &ProcessedRepo{store: store}
}

func processedKey(dateFolder, filename string) string {
	return dateFolder + "/" + filename
}

func (r *ProcessedRepo) IsProcessed(ctx context.Context, dateFolder, filename string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.processed[processedKey(dateFolder, filename)], nil
}

func (r *ProcessedRepo) MarkProcessed(ctx context.Context, dateFolder, filename string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.processed[processedKey(dateFolder, filename)] = true
	return nil
}
