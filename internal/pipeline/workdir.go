package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Workdir manages the dated working directory a cycle downloads into, and
// its backup copy.
type Workdir struct {
	base         string
	backupBase   string
	useYesterday bool
	now          func() time.Time
}

// NewWorkdir creates a manager rooted at base. When useYesterday is set the
// dated folder is named for the previous calendar day, which matches sources
// that publish a day's files overnight.
func NewWorkdir(base, backupBase string, useYesterday bool) *Workdir {
	return &Workdir{base: base, backupBase: backupBase, useYesterday: useYesterday, now: time.Now}
}

// TargetDate is the calendar date this cycle processes, at midnight local time.
func (w *Workdir) TargetDate() time.Time {
	t := w.now()
	if w.useYesterday {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FolderName is the dated directory name, YYYY-MM-DD.
func (w *Workdir) FolderName() string {
	return w.TargetDate().Format("2006-01-02")
}

// Create makes the dated directory, returning its path. Creating an existing
// directory is not an error; a cycle may be re-run for the same date.
func (w *Workdir) Create() (string, error) {
	dir := filepath.Join(w.base, w.FolderName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create date folder %s: %w", dir, err)
	}
	return dir, nil
}

// Subfolder makes a per-source subdirectory inside the dated directory.
func (w *Workdir) Subfolder(dateDir, name string) (string, error) {
	dir := filepath.Join(dateDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create source subfolder %s: %w", dir, err)
	}
	return dir, nil
}

// Backup copies the dated directory into the backup base, replacing any
// previous backup of the same date. It returns the backup path and total
// bytes copied.
func (w *Workdir) Backup(dateDir string) (string, int64, error) {
	dst := filepath.Join(w.backupBase, filepath.Base(dateDir))

	if err := os.RemoveAll(dst); err != nil {
		return "", 0, fmt.Errorf("remove stale backup %s: %w", dst, err)
	}

	var total int64
	err := filepath.Walk(dateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dateDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		n, err := copyFile(path, target)
		total += n
		return err
	})
	if err != nil {
		return "", total, fmt.Errorf("backup %s: %w", dateDir, err)
	}
	return dst, total, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}
