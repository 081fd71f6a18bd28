// Package control assembles the application from its components and manages
// their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docrelay/docrelay/internal/core/config"
	"github.com/docrelay/docrelay/internal/core/worker"
	"github.com/docrelay/docrelay/internal/executor"
	"github.com/docrelay/docrelay/internal/extract"
	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/health"
	redisclient "github.com/docrelay/docrelay/internal/infra/redis"
	"github.com/docrelay/docrelay/internal/infra/storage"
	"github.com/docrelay/docrelay/internal/infra/storage/memory"
	"github.com/docrelay/docrelay/internal/infra/storage/postgres"
	"github.com/docrelay/docrelay/internal/notify"
	"github.com/docrelay/docrelay/internal/output"
	"github.com/docrelay/docrelay/internal/pipeline"
	"github.com/docrelay/docrelay/internal/schedule"
	"github.com/docrelay/docrelay/internal/transfer"
)

// App is the assembled service: controller, scheduler, health server and the
// shared infrastructure underneath them.
type App struct {
	cfg          *config.AppConfig
	controller   *pipeline.Controller
	scheduler    *schedule.Scheduler
	healthServer *health.Server
	reporter     *faults.Reporter
	artifacts    *output.Writer
	pruner       *worker.Pruner
	cycles       storage.CycleRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp wires all components from configuration.
func NewApp(cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	errStore, err := faults.NewStore(cfg.Storage.ErrorDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init error store: %w", err)
	}
	reporter := faults.NewReporter(log, errStore)

	// Storage: PostgreSQL when configured, in-process otherwise.
	var (
		cycles    storage.CycleRepository
		processed storage.ProcessedFileRepository
		db        *postgres.DB
	)
	mem := memory.NewMemoryStorage()
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
			return nil, err
		}
		cycles = postgres.NewCycleRepo(db)
		log.Info("using PostgreSQL cycle storage")
	} else {
		cycles = memory.NewCycleRepo(mem)
		log.Info("using memory cycle storage")
	}

	// Processed-file tracking: Redis when configured, in-process otherwise.
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		processed = redisclient.NewProcessedRepo(redisClient)
		log.Info("using Redis processed-file tracking")
	} else {
		processed = memory.NewProcessedRepo(mem)
		log.Info("using memory processed-file tracking")
	}

	artifacts, err := output.NewWriter(cfg.Storage.ArtifactDir, log)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(extract.Policy{
		MergedMarker: cfg.Extraction.MergedMarker,
		MinFileSize:  cfg.Extraction.MinFileSize,
	}, log)

	workdir := pipeline.NewWorkdir(cfg.Storage.WorkDir, cfg.Storage.BackupDir, cfg.Storage.UseYesterday)
	exec := executor.New(cfg.Workers, reporter, log)
	mailer := notify.NewMailer(cfg.Email, log)

	controller := pipeline.NewController(
		cfg.Pipeline,
		transfer.NewFTPSClient(cfg.Source),
		transfer.NewSFTPClient(cfg.Destination),
		extractor,
		artifacts,
		workdir,
		exec,
		reporter,
		mailer,
		cycles,
		processed,
		log,
	)

	sched, err := schedule.New(schedule.Config{
		Interval: cfg.Schedule.Interval,
		CronExpr: cfg.Schedule.Cron,
		Timezone: cfg.Schedule.Timezone,
	}, func(ctx context.Context) error {
		_, err := controller.RunCycle(ctx)
		return err
	}, log)
	if err != nil {
		return nil, err
	}

	monitor := health.NewMonitor(sched, cycles, reporter)
	healthServer := health.NewServer(monitor, cfg.Server.Port)
	pruner := worker.NewPruner(cfg.Retention, artifacts, reporter, cycles, log)

	return &App{
		cfg:          cfg,
		controller:   controller,
		scheduler:    sched,
		healthServer: healthServer,
		reporter:     reporter,
		artifacts:    artifacts,
		pruner:       pruner,
		cycles:       cycles,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Start launches the health server and the scheduler. When configured, an
// initial cycle runs immediately instead of waiting for the first tick.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("health server failed", "error", err)
		}
	}()
	a.log.Info("health server listening", "port", a.cfg.Server.Port)

	a.scheduler.Start()
	go a.pruner.Start(ctx)

	if a.cfg.Schedule.RunAtStartup {
		go func() {
			a.log.Info("running initial cycle at startup")
			if _, err := a.controller.RunCycle(ctx); err != nil {
				a.log.Error("initial cycle failed", "error", err)
			}
		}()
	}
	return nil
}

// Stop shuts the service down: scheduler first so no new cycle starts, then
// retention cleanup and a final error report, then the infrastructure.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping service")

	a.scheduler.Stop()

	a.artifacts.CleanupExpired(a.cfg.Retention.ArtifactDays)
	if err := a.reporter.CleanupOldRecords(a.cfg.Retention.ErrorRecordDays); err != nil {
		a.log.Warn("error record cleanup failed", "error", err)
	}
	if a.cfg.Retention.CycleDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -a.cfg.Retention.CycleDays)
		if n, err := a.cycles.DeleteBefore(ctx, cutoff); err != nil {
			a.log.Warn("cycle history cleanup failed", "error", err)
		} else if n > 0 {
			a.log.Info("old cycles removed", "count", n)
		}
	}

	// Final error summary for the shutdown log.
	if report := a.reporter.Report(24); report != "" {
		a.log.Info("error summary for the last 24h\n" + report)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}

// RunOnce executes a single processing cycle outside the schedule.
func (a *App) RunOnce(ctx context.Context) error {
	_, err := a.controller.RunCycle(ctx)
	return err
}
