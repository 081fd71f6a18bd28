package notify

import (
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="background-color: #4CAF50; color: white; padding: 12px;">Document Processing Complete</h2>
  <p>Date folder: <b>{{.DateFolder}}</b></p>

  <h3>Summary</h3>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Start</td><td>{{.Start}}</td></tr>
    <tr><td>End</td><td>{{.End}}</td></tr>
    <tr><td>Duration</td><td>{{.Duration}}</td></tr>
    <tr><td>Status</td><td><b>{{.Status}}</b></td></tr>
    <tr><td>Artifact</td><td>{{.Artifact}}</td></tr>
    <tr><td>Documents processed</td><td>{{.Documents}}</td></tr>
    <tr><td>Records extracted</td><td>{{.Records}}</td></tr>
    <tr><td>Publish</td><td>{{.Publish}}</td></tr>
  </table>

  <h3>Folders scanned</h3>
  <table cellpadding="6" border="1" style="border-collapse: collapse;">
    <tr><th>Folder</th><th>Files found</th></tr>
    {{range .Folders}}<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
    {{end}}
  </table>

  <h3>Downloads ({{.Succeeded}}/{{.Total}} succeeded)</h3>
  <table cellpadding="6" border="1" style="border-collapse: collapse;">
    <tr><th>Folder</th><th>File</th><th>Result</th></tr>
    {{range .Downloads}}<tr><td>{{.SourceFolder}}</td><td>{{.Filename}}</td><td>{{if .Success}}ok{{else}}failed: {{.ErrorMessage}}{{end}}</td></tr>
    {{end}}
  </table>

  {{if .Errors}}
  <h3 style="color: #f44336;">Errors</h3>
  <ul>{{range .Errors}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
</body>
</html>`))

var failureTmpl = template.Must(template.New("failure").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="background-color: #f44336; color: white; padding: 12px;">Document Processing Failure</h2>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Context</td><td><b>{{.Context}}</b></td></tr>
    <tr><td>Time</td><td>{{.Time}}</td></tr>
  </table>
  <h3>Error</h3>
  <pre style="background-color: #f9f9f9; padding: 12px;">{{.Message}}</pre>
  <p>Manual intervention may be required.</p>
</body>
</html>`))

type folderCount struct {
	Name  string
	Count int
}

func summaryBody(stats *domain.CycleStats) (string, error) {
	folders := make([]folderCount, 0, len(stats.FoldersScanned))
	for name, count := range stats.FoldersScanned {
		folders = append(folders, folderCount{Name: name, Count: count})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })

	data := struct {
		DateFolder string
		Start, End string
		Duration   string
		Status     string
		Artifact   string
		Documents  int
		Records    int
		Publish    string
		Folders    []folderCount
		Downloads  []domain.DownloadOutcome
		Succeeded  int
		Total      int
		Errors     []string
	}{
		DateFolder: stats.DateFolder,
		Start:      stats.StartTime.Format(time.RFC3339),
		End:        stats.EndTime.Format(time.RFC3339),
		Duration:   stats.Duration().Round(time.Millisecond).String(),
		Status:     string(stats.Status()),
		Artifact:   stats.ArtifactName,
		Documents:  stats.DocumentsProcessed,
		Records:    stats.RecordsExtracted,
		Publish:    stats.PublishStatus,
		Folders:    folders,
		Downloads:  stats.Downloads,
		Succeeded:  stats.DownloadsSucceeded(),
		Total:      len(stats.Downloads),
		Errors:     stats.Errors,
	}

	var b strings.Builder
	if err := summaryTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func failureBody(context, message string, at time.Time) (string, error) {
	var b strings.Builder
	err := failureTmpl.Execute(&b, struct {
		Context string
		Time    string
		Message string
	}{context, at.Format(time.RFC3339), message})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
