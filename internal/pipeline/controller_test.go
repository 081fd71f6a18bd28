package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/executor"
	"github.com/docrelay/docrelay/internal/extract"
	"github.com/docrelay/docrelay/internal/faults"
	"github.com/docrelay/docrelay/internal/infra/storage/memory"
	"github.com/docrelay/docrelay/internal/output"
	"github.com/docrelay/docrelay/internal/transfer"
)

// ===== Mock Transfer Endpoint =====

type mockSession struct {
	mu        sync.Mutex
	files     map[string][]transfer.FileInfo // folder path -> listing
	payloads  map[string][]byte              // remote path -> content
	listErr   map[string]error               // folder path -> forced error
	dlErr     map[string]error               // remote path -> forced error
	uploads   []string                       // remote paths received
	downloads []string                       // remote paths served
	closed    int
}

func (s *mockSession) List(folderPath string) ([]transfer.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.listErr[folderPath]; err != nil {
		return nil, err
	}
	return s.files[folderPath], nil
}

func (s *mockSession) Download(remotePath, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dlErr[remotePath]; err != nil {
		return err
	}
	data, ok := s.payloads[remotePath]
	if !ok {
		return fmt.Errorf("no such remote file %s", remotePath)
	}
	s.downloads = append(s.downloads, remotePath)
	return os.WriteFile(localPath, data, 0o644)
}

func (s *mockSession) Upload(localPath, remotePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	s.uploads = append(s.uploads, remotePath)
	return nil
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type mockClient struct {
	session    *mockSession
	connectErr error
	connects   int
}

func (c *mockClient) Connect(ctx context.Context) (transfer.Session, error) {
	c.connects++
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.session, nil
}

// ===== Mock Notifier =====

type mockNotifier struct {
	mu              sync.Mutex
	notifyErr       error
	notified        []domain.CycleStats // snapshots at Notify time
	failureContexts []string
}

func (n *mockNotifier) Notify(stats *domain.CycleStats) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, *stats)
	return n.notifyErr
}

func (n *mockNotifier) NotifyFailure(context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failureContexts = append(n.failureContexts, context)
	return nil
}

// ===== Fixtures =====

func docxPayload(t *testing.T, lines ...string) []byte {
	t.Helper()
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, line := range lines {
		doc.WriteString(`<w:p><w:r><w:t>` + line + `</w:t></w:r></w:p>`)
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(doc.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type controllerFixture struct {
	controller *Controller
	source     *mockClient
	dest       *mockClient
	notifier   *mockNotifier
	cycles     *memory.CycleRepo
	processed  *memory.ProcessedRepo
	workdir    *Workdir
	backupBase string
}

func newFixture(t *testing.T, cfg Config, sourceSession *mockSession) *controllerFixture {
	t.Helper()

	workBase := t.TempDir()
	backupBase := t.TempDir()

	wd := NewWorkdir(workBase, backupBase, false)
	wd.now = fixedNow

	artifacts, err := output.NewWriter(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	reporter := faults.NewReporter(nil, nil)
	mem := memory.NewMemoryStorage()
	cycles := memory.NewCycleRepo(mem)
	processed := memory.NewProcessedRepo(mem)

	source := &mockClient{session: sourceSession}
	dest := &mockClient{session: &mockSession{}}
	notifier := &mockNotifier{}

	c := NewController(
		cfg,
		source,
		dest,
		extract.New(extract.Policy{MergedMarker: "MERGED"}, nil),
		artifacts,
		wd,
		executor.New(2, reporter, nil),
		reporter,
		notifier,
		cycles,
		processed,
		nil,
	)
	c.now = fixedNow

	return &controllerFixture{
		controller: c,
		source:     source,
		dest:       dest,
		notifier:   notifier,
		cycles:     cycles,
		processed:  processed,
		workdir:    wd,
		backupBase: backupBase,
	}
}

func defaultConfig() Config {
	return Config{
		SourcePath: "/outgoing",
		Folders:    []string{"Reports"},
		Extensions: []string{".docx", ".zip"},
		DestPath:   "/incoming",
	}
}

// ===== Tests =====

func TestRunCycleEndToEnd(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "DOE J 2024-20 1.docx", FullPath: "/outgoing/Reports/DOE J 2024-20 1.docx", Size: 2048},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/DOE J 2024-20 1.docx": docxPayload(t, "FIRST NAME: JANE", "LAST NAME: DOE"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if stats.DateFolder != "2024-02-03" {
		t.Errorf("DateFolder = %q", stats.DateFolder)
	}
	if got := stats.FoldersScanned["Reports"]; got != 1 {
		t.Errorf("FoldersScanned[Reports] = %d, want 1", got)
	}
	if stats.DownloadsSucceeded() != 1 {
		t.Errorf("downloads succeeded = %d, want 1", stats.DownloadsSucceeded())
	}
	if stats.DocumentsProcessed != 1 || stats.RecordsExtracted != 1 {
		t.Errorf("processed = %d, extracted = %d", stats.DocumentsProcessed, stats.RecordsExtracted)
	}
	if stats.ArtifactName != "20240203_output.csv" {
		t.Errorf("ArtifactName = %q", stats.ArtifactName)
	}
	if stats.PublishStatus != "SUCCESS" {
		t.Errorf("PublishStatus = %q", stats.PublishStatus)
	}
	if !stats.NotificationSent {
		t.Error("NotificationSent should be true")
	}
	if stats.LogFilename == "" {
		t.Error("LogFilename should be set")
	}
	if got := stats.Status(); got != domain.CycleStatusOK {
		t.Errorf("Status = %s, want ok", got)
	}

	// Artifact and cycle log live inside the dated directory.
	dateDir := filepath.Dir(stats.ArtifactPath)
	if filepath.Base(dateDir) != "2024-02-03" {
		t.Errorf("artifact written to %q, want the date folder", dateDir)
	}
	if _, err := os.Stat(filepath.Join(dateDir, stats.LogFilename)); err != nil {
		t.Errorf("cycle log missing: %v", err)
	}

	// The artifact was published under the destination path.
	if len(fx.dest.session.uploads) != 1 || fx.dest.session.uploads[0] != "/incoming/20240203_output.csv" {
		t.Errorf("uploads = %v", fx.dest.session.uploads)
	}

	// Notification saw the folded publish status, not the PENDING placeholder.
	if len(fx.notifier.notified) != 1 {
		t.Fatalf("notifications = %d, want 1", len(fx.notifier.notified))
	}
	if got := fx.notifier.notified[0].PublishStatus; got != "SUCCESS" {
		t.Errorf("notification saw PublishStatus %q", got)
	}

	// The download was marked processed for this date folder.
	done, err := fx.processed.IsProcessed(context.Background(), "2024-02-03", "DOE J 2024-20 1.docx")
	if err != nil || !done {
		t.Errorf("IsProcessed = %v, %v, want true", done, err)
	}

	// The cycle was persisted.
	latest, err := fx.cycles.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.ID != stats.ID {
		t.Errorf("persisted cycle ID = %q, want %q", latest.ID, stats.ID)
	}

	// The dated directory was archived, contents included.
	backup := filepath.Join(fx.backupBase, "2024-02-03", "Reports", "DOE J 2024-20 1.docx")
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("archive copy missing: %v", err)
	}
}

func TestRunCycleEmptyScan(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{"/outgoing/Reports": nil},
	}
	fx := newFixture(t, defaultConfig(), session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if stats.PublishStatus != "N/A - no files" {
		t.Errorf("PublishStatus = %q", stats.PublishStatus)
	}
	if len(stats.Downloads) != 0 {
		t.Errorf("Downloads = %d, want none", len(stats.Downloads))
	}
	if len(fx.notifier.notified) != 0 {
		t.Error("empty cycle must not notify")
	}
	if fx.source.connects != 1 {
		t.Errorf("source connects = %d, want 1 (scan only)", fx.source.connects)
	}
	if _, err := fx.cycles.GetLatest(context.Background()); err != nil {
		t.Errorf("empty cycle should still be persisted: %v", err)
	}
}

func TestRunCycleAllDownloadsFail(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "a.docx", FullPath: "/outgoing/Reports/a.docx"},
			},
		},
		dlErr: map[string]error{
			"/outgoing/Reports/a.docx": errors.New("transfer interrupted"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if stats.PublishStatus != "N/A - no downloads" {
		t.Errorf("PublishStatus = %q", stats.PublishStatus)
	}
	if len(stats.Downloads) != 1 || stats.Downloads[0].Success {
		t.Errorf("Downloads = %+v", stats.Downloads)
	}
	if len(stats.Errors) == 0 || !strings.Contains(stats.Errors[0], "transfer interrupted") {
		t.Errorf("Errors = %v", stats.Errors)
	}
	if len(fx.notifier.notified) != 0 {
		t.Error("cycle without downloads must not notify")
	}
}

func TestRunCyclePartialDownloadFailureContinues(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "GOOD G 2024-21 1.docx", FullPath: "/outgoing/Reports/GOOD G 2024-21 1.docx"},
				{Name: "bad.docx", FullPath: "/outgoing/Reports/bad.docx"},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/GOOD G 2024-21 1.docx": docxPayload(t, "FIRST NAME: GRETA"),
		},
		dlErr: map[string]error{
			"/outgoing/Reports/bad.docx": errors.New("connection reset"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if stats.DownloadsSucceeded() != 1 || len(stats.Downloads) != 2 {
		t.Errorf("Downloads = %+v", stats.Downloads)
	}
	if stats.RecordsExtracted != 1 {
		t.Errorf("RecordsExtracted = %d, want 1", stats.RecordsExtracted)
	}
	if got := stats.Status(); got != domain.CycleStatusDegraded {
		t.Errorf("Status = %s, want degraded", got)
	}
	if stats.PublishStatus != "SUCCESS" {
		t.Errorf("PublishStatus = %q, cycle should still publish", stats.PublishStatus)
	}
}

func TestRunCycleFiltersExtensions(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "keep.docx", FullPath: "/outgoing/Reports/keep.docx"},
				{Name: "skip.txt", FullPath: "/outgoing/Reports/skip.txt"},
				{Name: "skip.pdf", FullPath: "/outgoing/Reports/skip.pdf"},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/keep.docx": docxPayload(t, "FIRST NAME: KAY"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := stats.FoldersScanned["Reports"]; got != 1 {
		t.Errorf("FoldersScanned[Reports] = %d, want 1 after extension filter", got)
	}
	if len(stats.Downloads) != 1 || stats.Downloads[0].Filename != "keep.docx" {
		t.Errorf("Downloads = %+v", stats.Downloads)
	}
}

func TestRunCycleDateFilter(t *testing.T) {
	target := time.Date(2024, 2, 3, 11, 0, 0, 0, time.UTC)
	wrongDay := target.AddDate(0, 0, -3)

	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "today.docx", FullPath: "/outgoing/Reports/today.docx", ModTime: target},
				{Name: "old.docx", FullPath: "/outgoing/Reports/old.docx", ModTime: wrongDay},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/today.docx": docxPayload(t, "FIRST NAME: TESS"),
		},
	}
	cfg := defaultConfig()
	cfg.FilterByDate = true
	fx := newFixture(t, cfg, session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(stats.Downloads) != 1 || stats.Downloads[0].Filename != "today.docx" {
		t.Errorf("Downloads = %+v, want only the file dated for the cycle", stats.Downloads)
	}
}

func TestRunCycleSkipsProcessedFiles(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "seen.docx", FullPath: "/outgoing/Reports/seen.docx"},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/seen.docx": docxPayload(t, "FIRST NAME: SAM"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)

	if err := fx.processed.MarkProcessed(context.Background(), "2024-02-03", "seen.docx"); err != nil {
		t.Fatal(err)
	}

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(stats.Downloads) != 0 {
		t.Errorf("Downloads = %+v, want none for an already processed file", stats.Downloads)
	}
	if stats.PublishStatus != "N/A - no downloads" {
		t.Errorf("PublishStatus = %q", stats.PublishStatus)
	}
	if len(session.downloads) != 0 {
		t.Errorf("remote downloads = %v, want none", session.downloads)
	}
}

func TestRunCycleScanConnectFailure(t *testing.T) {
	fx := newFixture(t, defaultConfig(), &mockSession{})
	// Authentication failures are permanent, so the retry loop stops after
	// the first attempt and the test stays fast.
	fx.source.connectErr = fmt.Errorf("source login: %w", faults.ErrAuthentication)

	stats, err := fx.controller.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected a processing error")
	}
	var perr *ProcessingError
	if !errors.As(err, &perr) || perr.Phase != "scan" {
		t.Errorf("error = %v, want ProcessingError in phase scan", err)
	}
	if fx.source.connects != 1 {
		t.Errorf("connects = %d, want 1 for a non-recoverable failure", fx.source.connects)
	}
	if len(fx.notifier.failureContexts) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(fx.notifier.failureContexts))
	}
	if stats == nil || stats.EndTime.IsZero() {
		t.Error("failed cycle must still return finalized stats")
	}
	if _, err := fx.cycles.GetLatest(context.Background()); err != nil {
		t.Errorf("failed cycle should still be persisted: %v", err)
	}
}

func TestRunCycleUploadFailureFoldedIntoStats(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "UP U 2024-22 1.docx", FullPath: "/outgoing/Reports/UP U 2024-22 1.docx"},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/UP U 2024-22 1.docx": docxPayload(t, "FIRST NAME: UNA"),
		},
	}
	fx := newFixture(t, defaultConfig(), session)
	fx.dest.connectErr = fmt.Errorf("dest login: %w", faults.ErrAuthentication)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("upload failure must not fail the cycle: %v", err)
	}

	if !strings.HasPrefix(stats.PublishStatus, "FAILED: ") {
		t.Errorf("PublishStatus = %q", stats.PublishStatus)
	}
	found := false
	for _, e := range stats.Errors {
		if strings.Contains(e, "artifact upload failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want an upload failure entry", stats.Errors)
	}

	// The notification still goes out and reports the failed publish.
	if len(fx.notifier.notified) != 1 {
		t.Fatalf("notifications = %d, want 1", len(fx.notifier.notified))
	}
	if got := fx.notifier.notified[0].PublishStatus; !strings.HasPrefix(got, "FAILED: ") {
		t.Errorf("notification saw PublishStatus %q", got)
	}
}

func TestRunCycleListFailureSkipsFolder(t *testing.T) {
	session := &mockSession{
		files: map[string][]transfer.FileInfo{
			"/outgoing/Reports": {
				{Name: "ok.docx", FullPath: "/outgoing/Reports/ok.docx"},
			},
		},
		payloads: map[string][]byte{
			"/outgoing/Reports/ok.docx": docxPayload(t, "FIRST NAME: OLA"),
		},
		listErr: map[string]error{
			"/outgoing/Letters": errors.New("550 no such directory"),
		},
	}
	cfg := defaultConfig()
	cfg.Folders = []string{"Reports", "Letters"}
	fx := newFixture(t, cfg, session)

	stats, err := fx.controller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("one unlistable folder must not abort the cycle: %v", err)
	}
	if got := stats.FoldersScanned["Reports"]; got != 1 {
		t.Errorf("FoldersScanned[Reports] = %d, want 1", got)
	}
	if got := stats.FoldersScanned["Letters"]; got != 0 {
		t.Errorf("FoldersScanned[Letters] = %d, want 0", got)
	}
	if len(stats.Errors) == 0 || !strings.Contains(stats.Errors[0], "Letters") {
		t.Errorf("Errors = %v, want the scan failure recorded", stats.Errors)
	}
	if stats.DownloadsSucceeded() != 1 {
		t.Errorf("downloads succeeded = %d, want 1", stats.DownloadsSucceeded())
	}
}
