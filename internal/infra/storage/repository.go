package storage

import (
	"context"
	"errors"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

var (
	// ErrCycleNotFound is returned when no cycle matches the query.
	ErrCycleNotFound = errors.New("cycle not found")
)

// CycleRepository persists per-cycle processing statistics.
type CycleRepository interface {
	// Save stores the stats of one completed cycle.
	Save(ctx context.Context, stats *domain.CycleStats) error

	// GetLatest retrieves the most recent cycle, or ErrCycleNotFound.
	GetLatest(ctx context.Context) (*domain.CycleStats, error)

	// GetRecent retrieves up to limit cycles, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.CycleStats, error)

	// DeleteBefore removes cycles that started before cutoff, returning the
	// count removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ProcessedFileRepository remembers which remote files were already handled,
// so repeated scans of the same date folder do not re-download them.
type ProcessedFileRepository interface {
	// IsProcessed reports whether the file was already handled for this date.
	IsProcessed(ctx context.Context, dateFolder, filename string) (bool, error)

	// MarkProcessed records the file as handled for this date.
	MarkProcessed(ctx context.Context, dateFolder, filename string) error
}
