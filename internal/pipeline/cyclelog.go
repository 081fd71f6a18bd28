package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

const logDivider = "================================================================================"
const logRule = "--------------------------------------------------------------------------------"

// WriteCycleLog writes a human-readable processing log into dir and returns
// the log filename. The log is a plain-text artifact kept next to the
// downloaded files, separate from structured application logging.
func WriteCycleLog(dir string, stats *domain.CycleStats, now time.Time) (string, error) {
	name := fmt.Sprintf("processing_log_%s.txt", now.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(cycleLogContent(stats)), 0o644); err != nil {
		return "", fmt.Errorf("write cycle log %s: %w", path, err)
	}
	return name, nil
}

func cycleLogContent(stats *domain.CycleStats) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(logDivider)
	line("DOCUMENT PROCESSING LOG")
	line(logDivider)
	line("")

	line("PROCESSING SUMMARY")
	line(logRule)
	line("Date Folder:        %s", stats.DateFolder)
	line("Start Time:         %s", stats.StartTime.Format(time.RFC3339))
	line("End Time:           %s", stats.EndTime.Format(time.RFC3339))
	line("Duration:           %.2f seconds", stats.Duration().Seconds())
	line("Status:             %s", stats.Status())
	line("")

	line("FOLDER SCAN RESULTS")
	line(logRule)
	line("Folders Scanned:    %d", len(stats.FoldersScanned))
	totalFound := 0
	names := make([]string, 0, len(stats.FoldersScanned))
	for name, count := range stats.FoldersScanned {
		totalFound += count
		names = append(names, name)
	}
	sort.Strings(names)
	line("Total Files Found:  %d", totalFound)
	for _, name := range names {
		line("  %-24s %d", name, stats.FoldersScanned[name])
	}
	line("")

	line("DOWNLOAD RESULTS")
	line(logRule)
	line("Downloads:          %d/%d succeeded", stats.DownloadsSucceeded(), len(stats.Downloads))
	for _, d := range stats.Downloads {
		if d.Success {
			line("  [ok]     %s/%s (%d bytes)", d.SourceFolder, d.Filename, d.Size)
		} else {
			line("  [failed] %s/%s: %s", d.SourceFolder, d.Filename, d.ErrorMessage)
		}
	}
	line("")

	line("EXTRACTION AND OUTPUT")
	line(logRule)
	line("Documents Processed: %d", stats.DocumentsProcessed)
	line("Records Extracted:   %d", stats.RecordsExtracted)
	line("Artifact:            %s (%d bytes)", stats.ArtifactName, stats.ArtifactSize)
	line("Publish Status:      %s", stats.PublishStatus)
	line("")

	if len(stats.Errors) > 0 {
		line("ERRORS")
		line(logRule)
		for _, e := range stats.Errors {
			line("  - %s", e)
		}
		line("")
	}

	line(logDivider)
	return b.String()
}
