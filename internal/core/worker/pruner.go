// Package worker holds background maintenance workers.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/docrelay/docrelay/internal/core/config"
	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/infra/storage"
	"github.com/docrelay/docrelay/internal/output"
)

// Pruner deletes aged local state on a fixed cadence: expired CSV artifacts,
// old error records and old cycle history. Retention values of zero disable
// the corresponding cleanup.
type Pruner struct {
	cfg       config.RetentionConfig
	artifacts *output.Writer
	reporter  *faults.Reporter
	cycles    storage.CycleRepository
	log       *slog.Logger
	interval  time.Duration
}

// NewPruner creates a Pruner worker.
func NewPruner(
	cfg config.RetentionConfig,
	artifacts *output.Writer,
	reporter *faults.Reporter,
	cycles storage.CycleRepository,
	log *slog.Logger,
) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		cfg:       cfg,
		artifacts: artifacts,
		reporter:  reporter,
		cycles:    cycles,
		log:       log,
		interval:  12 * time.Hour,
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.cfg.ArtifactDays <= 0 && p.cfg.ErrorRecordDays <= 0 && p.cfg.CycleDays <= 0 {
		return // retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	p.artifacts.CleanupExpired(p.cfg.ArtifactDays)

	if err := p.reporter.CleanupOldRecords(p.cfg.ErrorRecordDays); err != nil {
		p.log.Error("failed to prune error records", "error", err)
	}

	if p.cfg.CycleDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.cfg.CycleDays)
		n, err := p.cycles.DeleteBefore(ctx, cutoff)
		if err != nil {
			p.log.Error("failed to prune cycle history", "error", err)
			return
		}
		if n > 0 {
			p.log.Info("old cycles pruned", "count", n)
		}
	}
}
