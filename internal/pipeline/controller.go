// Package pipeline runs the recurring document processing cycle: scan the
// source endpoint, download the day's files, extract records, write the CSV
// artifact, publish results and archive the working directory.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/executor"
	"github.com/docrelay/docrelay/internal/extract"
	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/infra/storage"
	"github.com/docrelay/docrelay/internal/metrics"
	"github.com/docrelay/docrelay/internal/output"
	"github.com/docrelay/docrelay/internal/transfer"
)

// ProcessingError marks a cycle that could not complete. Phase names the
// stage that failed.
type ProcessingError struct {
	Phase string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing cycle failed during %s: %v", e.Phase, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Notifier sends end-of-cycle notifications.
type Notifier interface {
	Notify(stats *domain.CycleStats) error
	NotifyFailure(context, message string) error
}

// Config holds the cycle-level settings.
type Config struct {
	// SourcePath is the base path on the source endpoint holding the
	// per-type folders.
	SourcePath string `yaml:"source_path"`

	// Folders are the type folders scanned under SourcePath.
	Folders []string `yaml:"folders"`

	// Extensions are the document extensions accepted during scan,
	// lowercased with the leading dot.
	Extensions []string `yaml:"extensions"`

	// DestPath is the directory on the destination endpoint artifacts are
	// published into.
	DestPath string `yaml:"dest_path"`

	// FilterByDate, when set, downloads only files whose remote
	// modification date matches the cycle's target date.
	FilterByDate bool `yaml:"filter_by_date"`
}

// Controller orchestrates one processing cycle end to end. It owns no
// goroutines of its own; concurrency lives in the executor it delegates the
// publish phase to.
type Controller struct {
	cfg       Config
	source    transfer.Client
	dest      transfer.Client
	extractor *extract.Extractor
	artifacts *output.Writer
	workdir   *Workdir
	exec      *executor.Executor
	reporter  *faults.Reporter
	notifier  Notifier
	cycles    storage.CycleRepository
	processed storage.ProcessedFileRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewController wires a Controller from its collaborators.
func NewController(
	cfg Config,
	source, dest transfer.Client,
	extractor *extract.Extractor,
	artifacts *output.Writer,
	workdir *Workdir,
	exec *executor.Executor,
	reporter *faults.Reporter,
	notifier Notifier,
	cycles storage.CycleRepository,
	processed storage.ProcessedFileRepository,
	log *slog.Logger,
) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		source:    source,
		dest:      dest,
		extractor: extractor,
		artifacts: artifacts,
		workdir:   workdir,
		exec:      exec,
		reporter:  reporter,
		notifier:  notifier,
		cycles:    cycles,
		processed: processed,
		log:       log,
		now:       time.Now,
	}
}

// RunCycle executes one full processing cycle. A cycle that finds nothing to
// do finishes cleanly with empty stats. Partial failures are absorbed into
// the stats; only failures that make the remaining phases meaningless return
// a ProcessingError.
func (c *Controller) RunCycle(ctx context.Context) (*domain.CycleStats, error) {
	stats := &domain.CycleStats{
		ID:             uuid.New().String(),
		DateFolder:     c.workdir.FolderName(),
		StartTime:      c.now(),
		FoldersScanned: map[string]int{},
	}
	c.log.Info("starting processing cycle", "cycle_id", stats.ID, "date_folder", stats.DateFolder)

	runErr := c.runPhases(ctx, stats)

	stats.EndTime = c.now()
	metrics.CyclesTotal.WithLabelValues(string(stats.Status())).Inc()
	metrics.CycleDuration.Observe(stats.Duration().Seconds())

	if err := c.cycles.Save(ctx, stats); err != nil {
		c.reporter.Handle(err, faults.CategoryPersistence, faults.SeverityHigh,
			"controller", "save_cycle", map[string]any{"cycle_id": stats.ID}, 0, 0)
	}

	if runErr != nil {
		c.reporter.Handle(runErr, faults.CategorySystemResource, faults.SeverityCritical,
			"controller", "run_cycle", map[string]any{"cycle_id": stats.ID}, 0, 0)
		if err := c.notifier.NotifyFailure("Processing Cycle", runErr.Error()); err != nil {
			c.log.Error("failure notification could not be sent", "error", err)
		}
		return stats, runErr
	}

	c.log.Info("processing cycle finished",
		"cycle_id", stats.ID,
		"status", stats.Status(),
		"duration", stats.Duration(),
		"downloads", stats.DownloadsSucceeded(),
		"records", stats.RecordsExtracted)
	return stats, nil
}

func (c *Controller) runPhases(ctx context.Context, stats *domain.CycleStats) error {
	dateDir, err := c.workdir.Create()
	if err != nil {
		return &ProcessingError{Phase: "workspace", Err: err}
	}

	scan, err := c.scan(ctx, stats)
	if err != nil {
		return &ProcessingError{Phase: "scan", Err: err}
	}
	total := 0
	for _, files := range scan {
		total += len(files)
	}
	if total == 0 {
		c.log.Info("nothing to do, no files found in any folder")
		stats.PublishStatus = "N/A - no files"
		return nil
	}

	if err := c.download(ctx, scan, dateDir, stats); err != nil {
		return &ProcessingError{Phase: "download", Err: err}
	}
	if stats.DownloadsSucceeded() == 0 {
		c.log.Warn("no files downloaded successfully, stopping cycle")
		stats.PublishStatus = "N/A - no downloads"
		return nil
	}

	records, err := c.extract(dateDir, stats)
	if err != nil {
		return &ProcessingError{Phase: "extract", Err: err}
	}

	artifactPath, err := c.writeArtifact(dateDir, records, stats)
	if err != nil {
		return &ProcessingError{Phase: "artifact", Err: err}
	}

	c.publish(ctx, dateDir, artifactPath, stats)

	c.archive(dateDir)

	return nil
}

// scan connects to the source endpoint and lists each configured type
// folder, keeping only accepted document extensions. A folder that cannot be
// listed is recorded and skipped; only a connection failure aborts the scan.
func (c *Controller) scan(ctx context.Context, stats *domain.CycleStats) (map[string][]transfer.FileInfo, error) {
	results := make(map[string][]transfer.FileInfo, len(c.cfg.Folders))

	err := c.reporter.ExecuteWithRetry(ctx, faults.CategoryRemoteConnection,
		"controller", "scan_folders", map[string]any{"path": c.cfg.SourcePath},
		func(ctx context.Context) error {
			session, err := c.source.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			for _, folder := range c.cfg.Folders {
				remote := joinRemote(c.cfg.SourcePath, folder)
				files, err := session.List(remote)
				if err != nil {
					c.reporter.Handle(err, faults.CategoryRemoteFile, faults.SeverityMedium,
						"controller", "list_folder", map[string]any{"folder": folder}, 0, 0)
					stats.AddError(fmt.Sprintf("scan failed: %s: %v", folder, err))
					results[folder] = nil
					continue
				}
				docs := files[:0]
				for _, f := range files {
					if c.acceptedExtension(f.Name) {
						docs = append(docs, f)
					}
				}
				results[folder] = docs
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	for folder, files := range results {
		stats.FoldersScanned[folder] = len(files)
		c.log.Info("folder scanned", "folder", folder, "files", len(files))
	}
	return results, nil
}

func (c *Controller) acceptedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range c.cfg.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// download fetches the scanned files into per-folder subdirectories of the
// dated directory. One failed file never aborts the rest; every attempt is
// recorded as a DownloadOutcome.
func (c *Controller) download(ctx context.Context, scan map[string][]transfer.FileInfo,
	dateDir string, stats *domain.CycleStats) error {

	targetDate := c.workdir.TargetDate()

	return c.reporter.ExecuteWithRetry(ctx, faults.CategoryRemoteConnection,
		"controller", "download_files", nil,
		func(ctx context.Context) error {
			session, err := c.source.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			for folder, files := range scan {
				wanted := c.filterForDownload(ctx, folder, files, targetDate)
				if len(wanted) == 0 {
					continue
				}
				subdir, err := c.workdir.Subfolder(dateDir, folder)
				if err != nil {
					return err
				}
				c.log.Info("downloading files", "folder", folder, "count", len(wanted))

				for _, f := range wanted {
					outcome := c.downloadOne(ctx, session, folder, f, subdir)
					stats.Downloads = append(stats.Downloads, outcome)

					status := "success"
					if !outcome.Success {
						status = "failed"
						stats.AddError(fmt.Sprintf("download failed: %s/%s - %s",
							folder, f.Name, outcome.ErrorMessage))
					}
					metrics.FilesDownloaded.WithLabelValues(folder, status).Inc()
				}
			}
			return nil
		})
}

// filterForDownload drops files that do not match the target date and files
// already processed in a previous cycle for the same date folder.
func (c *Controller) filterForDownload(ctx context.Context, folder string,
	files []transfer.FileInfo, targetDate time.Time) []transfer.FileInfo {

	y, m, d := targetDate.Date()
	var wanted []transfer.FileInfo
	for _, f := range files {
		if c.cfg.FilterByDate {
			fy, fm, fd := f.ModTime.Date()
			if fy != y || fm != m || fd != d {
				c.log.Debug("file skipped, wrong date",
					"folder", folder, "file", f.Name, "modified", f.ModTime)
				continue
			}
		}
		done, err := c.processed.IsProcessed(ctx, c.workdir.FolderName(), f.Name)
		if err != nil {
			c.reporter.Handle(err, faults.CategoryPersistence, faults.SeverityLow,
				"controller", "check_processed", map[string]any{"file": f.Name}, 0, 0)
		} else if done {
			c.log.Debug("file skipped, already processed", "folder", folder, "file", f.Name)
			continue
		}
		wanted = append(wanted, f)
	}
	return wanted
}

func (c *Controller) downloadOne(ctx context.Context, session transfer.Session,
	folder string, f transfer.FileInfo, subdir string) domain.DownloadOutcome {

	localPath := filepath.Join(subdir, f.Name)
	if err := session.Download(f.FullPath, localPath); err != nil {
		c.reporter.Handle(err, faults.CategoryRemoteFile, faults.SeverityMedium,
			"controller", "download_file",
			map[string]any{"folder": folder, "file": f.Name}, 0, 0)
		return domain.DownloadOutcome{
			SourceFolder: folder,
			Filename:     f.Name,
			Size:         f.Size,
			ErrorMessage: err.Error(),
		}
	}

	if err := c.processed.MarkProcessed(ctx, c.workdir.FolderName(), f.Name); err != nil {
		c.reporter.Handle(err, faults.CategoryPersistence, faults.SeverityLow,
			"controller", "mark_processed", map[string]any{"file": f.Name}, 0, 0)
	}
	return domain.DownloadOutcome{
		SourceFolder: folder,
		Filename:     f.Name,
		Size:         f.Size,
		Success:      true,
	}
}

// extract walks the dated directory and parses every downloaded document.
// Documents that fail to parse are recorded and skipped.
func (c *Controller) extract(dateDir string, stats *domain.CycleStats) ([]domain.Record, error) {
	var records []domain.Record

	err := filepath.Walk(dateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || path == dateDir {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".zip":
			recs, zerr := c.extractor.ProcessZip(path, filepath.Dir(path))
			if zerr != nil {
				c.recordParseFailure(stats, path, zerr)
				return nil
			}
			records = append(records, recs...)
			stats.DocumentsProcessed += len(recs)
		case ".doc", ".docx":
			rec, perr := c.extractor.ProcessDocument(path)
			stats.DocumentsProcessed++
			if perr != nil {
				c.recordParseFailure(stats, path, perr)
				// Keep the filename-only record so the artifact accounts
				// for the file.
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk date folder: %w", err)
	}

	stats.RecordsExtracted = len(records)
	metrics.RecordsExtracted.Add(float64(len(records)))
	c.log.Info("extraction complete",
		"documents", stats.DocumentsProcessed, "records", stats.RecordsExtracted)
	return records, nil
}

func (c *Controller) recordParseFailure(stats *domain.CycleStats, path string, err error) {
	c.reporter.Handle(err, faults.CategoryDocumentParsing, faults.SeverityMedium,
		"controller", "process_document", map[string]any{"file": filepath.Base(path)}, 0, 0)
	stats.AddError(fmt.Sprintf("parse failed: %s - %v", filepath.Base(path), err))
}

// writeArtifact writes the dated CSV into the date folder. A header-only
// artifact is still written when no records were parsed.
func (c *Controller) writeArtifact(dateDir string, records []domain.Record,
	stats *domain.CycleStats) (string, error) {

	path, err := c.artifacts.WriteArtifactIn(dateDir, records, c.workdir.TargetDate())
	if err != nil {
		return "", err
	}
	stats.ArtifactName = filepath.Base(path)
	stats.ArtifactPath = path
	if fi, err := os.Stat(path); err == nil {
		stats.ArtifactSize = fi.Size()
	}
	return path, nil
}

// publish runs the parallel output actions: artifact upload and cycle log in
// the first wave, then the notification, which must see the upload result
// and log filename in the stats it reports.
func (c *Controller) publish(ctx context.Context, dateDir, artifactPath string, stats *domain.CycleStats) {
	stats.PublishStatus = "PENDING"

	first := []executor.Action{
		{
			Name: "upload_artifact",
			Run: func(ctx context.Context) error {
				return c.uploadArtifact(ctx, artifactPath)
			},
		},
		{
			Name: "write_cycle_log",
			Run: func(ctx context.Context) error {
				name, err := WriteCycleLog(dateDir, stats, c.now())
				if err != nil {
					return err
				}
				stats.LogFilename = name
				return nil
			},
		},
	}

	outcomes := c.exec.RunStaged(ctx, first, func(done []executor.Outcome) executor.Action {
		// Fold wave-one results into the stats before the notification
		// reads them.
		if up, ok := executor.Find(done, "upload_artifact"); ok {
			if up.Success {
				stats.PublishStatus = "SUCCESS"
			} else {
				stats.PublishStatus = "FAILED: " + up.ErrorMessage
				stats.AddError("artifact upload failed: " + up.ErrorMessage)
			}
		}
		if lg, ok := executor.Find(done, "write_cycle_log"); ok && !lg.Success {
			stats.AddError("cycle log failed: " + lg.ErrorMessage)
		}

		return executor.Action{
			Name: "send_notification",
			Run: func(ctx context.Context) error {
				return c.notifier.Notify(stats)
			},
		}
	})

	if note, ok := executor.Find(outcomes, "send_notification"); ok {
		stats.NotificationSent = note.Success
		if !note.Success {
			stats.AddError("notification failed: " + note.ErrorMessage)
		}
	}

	summary := executor.Summarize(outcomes)
	c.log.Info("publish actions complete",
		"successful", summary.Successful, "total", summary.Total)
}

func (c *Controller) uploadArtifact(ctx context.Context, artifactPath string) error {
	return c.reporter.ExecuteWithRetry(ctx, faults.CategoryRemoteConnection,
		"controller", "upload_artifact", map[string]any{"artifact": filepath.Base(artifactPath)},
		func(ctx context.Context) error {
			session, err := c.dest.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			remote := joinRemote(c.cfg.DestPath, filepath.Base(artifactPath))
			return session.Upload(artifactPath, remote)
		})
}

// archive copies the dated directory into the backup location. Archiving is
// best effort; the cycle has already succeeded by the time it runs.
func (c *Controller) archive(dateDir string) {
	dst, size, err := c.workdir.Backup(dateDir)
	if err != nil {
		c.reporter.Handle(err, faults.CategorySystemResource, faults.SeverityLow,
			"controller", "archive_workdir", map[string]any{"dir": dateDir}, 0, 0)
		return
	}
	c.log.Info("working directory archived", "backup", dst, "bytes", size)
}

func joinRemote(base, name string) string {
	if base == "" {
		return name
	}
	return strings.TrimRight(base, "/") + "/" + name
}
