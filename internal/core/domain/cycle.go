package domain

import "time"

// CycleStatus summarises how a processing cycle ended.
type CycleStatus string

const (
	CycleStatusOK       CycleStatus = "ok"
	CycleStatusEmpty    CycleStatus = "empty"    // nothing to do
	CycleStatusDegraded CycleStatus = "degraded" // partial failures absorbed
	CycleStatusFailed   CycleStatus = "failed"
)

// DownloadOutcome records the result of one remote file download.
// Write-once: created during the download phase and never mutated.
type DownloadOutcome struct {
	SourceFolder string `json:"source_folder"`
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// CycleStats accumulates everything a single processing cycle did.
// It is mutated only by the goroutine running the cycle, strictly between
// executor waves; the notification wave reads it after wave one has been
// folded in.
type CycleStats struct {
	ID                 string            `json:"id"`
	DateFolder         string            `json:"date_folder"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	FoldersScanned     map[string]int    `json:"folders_scanned"` // folder name -> files found
	Downloads          []DownloadOutcome `json:"downloads"`
	DocumentsProcessed int               `json:"documents_processed"`
	RecordsExtracted   int               `json:"records_extracted"`
	ArtifactName       string            `json:"artifact_name"`
	ArtifactPath       string            `json:"artifact_path"`
	ArtifactSize       int64             `json:"artifact_size"`
	PublishStatus      string            `json:"publish_status"`
	LogFilename        string            `json:"log_filename"`
	NotificationSent   bool              `json:"notification_sent"`
	Errors             []string          `json:"errors,omitempty"`
}

// Duration is the wall-clock time the cycle took.
func (s *CycleStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// DownloadsSucceeded counts successful downloads.
func (s *CycleStats) DownloadsSucceeded() int {
	n := 0
	for _, d := range s.Downloads {
		if d.Success {
			n++
		}
	}
	return n
}

// Status derives the overall cycle status from the accumulated fields.
func (s *CycleStats) Status() CycleStatus {
	switch {
	case len(s.FoldersScanned) == 0 && len(s.Downloads) == 0 && s.RecordsExtracted == 0 && s.ArtifactName == "":
		return CycleStatusEmpty
	case len(s.Errors) > 0 || s.DownloadsSucceeded() < len(s.Downloads):
		return CycleStatusDegraded
	default:
		return CycleStatusOK
	}
}

// AddError appends a human-readable error line to the cycle stats.
func (s *CycleStats) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
