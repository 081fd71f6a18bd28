package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	return rows
}

func TestFilename(t *testing.T) {
	date := time.Date(2024, 3, 7, 15, 30, 0, 0, time.UTC)
	if got := Filename(date); got != "20240307_output.csv" {
		t.Errorf("Filename = %q", got)
	}
}

func TestWriteArtifactRows(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	records := []domain.Record{
		{
			SourceFile:        "SMITH J 2024-15 1.docx",
			FirstName:         "JOHN",
			LastName:          "SMITH",
			DateOfBirth:       "03/04/1980",
			RecordNumber:      "12.34.567",
			CaseNumber:        "98765",
			IncidentDate:      "01/15/2024",
			ProviderFirst:     "JANE",
			ProviderLast:      "JONES",
			ExamDate:          "02/01/2024",
			ExamPlace:         "Riverside Medical Center",
			Transcriptionist:  "ab/cd",
			DictationDate:     "02/02/2024",
			TranscriptionDate: "02/03/2024",
			JobNumber:         "2024-15",
			CaseCode:          "AB12345",
		},
		{SourceFile: "MERGED 2024-16.docx"},
	}

	date := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	path, err := w.WriteArtifact(records, date)
	if err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if filepath.Base(path) != "20240203_output.csv" {
		t.Errorf("artifact name = %q", filepath.Base(path))
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	wantHeader := []string{
		"source_file", "first_name", "last_name", "date_of_birth",
		"record_number", "case_number", "accident_date/Injury_date",
		"provider_first", "provider_last", "exam_date", "exam_place",
		"transcriptionist", "dd_date", "transcription_date", "job_number",
		"case_code",
	}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v", rows[0])
	}

	wantRow := []string{
		"SMITH J 2024-15 1.docx", "JOHN", "SMITH", "03/04/1980",
		"12.34.567", "98765", "01/15/2024", "JANE", "JONES", "02/01/2024",
		"Riverside Medical Center", "ab/cd", "02/02/2024", "02/03/2024",
		"2024-15", "AB12345",
	}
	if !reflect.DeepEqual(rows[1], wantRow) {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "MERGED 2024-16.docx" || rows[2][1] != "" {
		t.Errorf("row 2 = %v, want filename-only record", rows[2])
	}
}

func TestWriteArtifactHeaderOnly(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	path, err := w.WriteArtifact(nil, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestWriteArtifactInExplicitDir(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	dateDir := filepath.Join(root, "2024-02-03")
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := w.WriteArtifactIn(dateDir, nil, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteArtifactIn: %v", err)
	}
	if filepath.Dir(path) != dateDir {
		t.Errorf("artifact dir = %q, want %q", filepath.Dir(path), dateDir)
	}
}

func TestCleanupExpiredDisabled(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.WriteArtifact(nil, time.Now()); err != nil {
		t.Fatal(err)
	}

	if removed := w.CleanupExpired(0); removed != 0 {
		t.Errorf("removed = %d, want 0 when retention disabled", removed)
	}
}

func TestCleanupExpiredRemovesOldArtifacts(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	oldDir := filepath.Join(root, "2024-01-01")
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		t.Fatal(err)
	}
	oldPath, err := w.WriteArtifactIn(oldDir, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -40)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	freshPath, err := w.WriteArtifact(nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if removed := w.CleanupExpired(30); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expired artifact should be gone")
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("emptied date directory should be pruned")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Errorf("fresh artifact should survive: %v", err)
	}
}
