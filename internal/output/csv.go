// Package output writes the per-cycle CSV artifact and applies the retention
// policy to stored artifacts.
package output

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

// Column order is part of the downstream contract and must not change.
var csvColumns = []string{
	"source_file",
	"first_name",
	"last_name",
	"date_of_birth",
	"record_number",
	"case_number",
	"accident_date/Injury_date",
	"provider_first",
	"provider_last",
	"exam_date",
	"exam_place",
	"transcriptionist",
	"dd_date",
	"transcription_date",
	"job_number",
	"case_code",
}

// Writer produces dated CSV artifacts under a storage root.
type Writer struct {
	dir string
	log *slog.Logger
	now func() time.Time
}

// NewWriter creates a Writer rooted at dir, creating it if missing.
func NewWriter(dir string, log *slog.Logger) (*Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, log: log, now: time.Now}, nil
}

// Filename returns the artifact name for a processing date.
func Filename(date time.Time) string {
	return date.Format("20060102") + "_output.csv"
}

// WriteArtifact writes records to the dated CSV under the configured storage
// root and returns the artifact path.
func (w *Writer) WriteArtifact(records []domain.Record, date time.Time) (string, error) {
	return w.WriteArtifactIn(w.dir, records, date)
}

// WriteArtifactIn writes the dated CSV into an explicit directory. A cycle
// with zero parsed records still produces a header-only artifact so
// downstream consumers can tell "ran, found nothing" from "did not run".
func (w *Writer) WriteArtifactIn(dir string, records []domain.Record, date time.Time) (string, error) {
	path := filepath.Join(dir, Filename(date))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvColumns); err != nil {
		return "", fmt.Errorf("write artifact header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.SourceFile,
			r.FirstName,
			r.LastName,
			r.DateOfBirth,
			r.RecordNumber,
			r.CaseNumber,
			r.IncidentDate,
			r.ProviderFirst,
			r.ProviderLast,
			r.ExamDate,
			r.ExamPlace,
			r.Transcriptionist,
			r.DictationDate,
			r.TranscriptionDate,
			r.JobNumber,
			r.CaseCode,
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write artifact row for %s: %w", r.SourceFile, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush artifact %s: %w", path, err)
	}

	w.log.Info("artifact written", "path", path, "records", len(records))
	return path, nil
}

// CleanupExpired removes artifacts older than retentionDays, by modification
// time, and prunes emptied date directories. Zero or negative retention
// disables cleanup. It returns the number of files removed.
func (w *Writer) CleanupExpired(retentionDays int) int {
	if retentionDays <= 0 {
		w.log.Info("artifact retention disabled, skipping cleanup")
		return 0
	}
	cutoff := w.now().AddDate(0, 0, -retentionDays)
	removed := 0

	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".csv" {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr != nil {
				w.log.Warn("could not remove expired artifact", "path", path, "error", rmErr)
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		w.log.Error("artifact cleanup walk failed", "error", err)
	}

	// Drop date directories the walk emptied.
	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(w.dir, e.Name())
			if inner, err := os.ReadDir(sub); err == nil && len(inner) == 0 {
				os.Remove(sub)
			}
		}
	}

	w.log.Info("expired artifacts removed", "count", removed, "retention_days", retentionDays)
	return removed
}
