// Package extract turns downloaded document payloads into structured records.
// Extraction is deliberately forgiving: an unparseable document still yields a
// record carrying its source filename, so the aggregate output accounts for
// every file that arrived.
package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/faults"
)

// Policy tunes extraction behavior per deployment.
type Policy struct {
	// MergedMarker, when non-empty, names a filename substring whose
	// documents hold free-paragraph text with no labeled fields. Such
	// documents are kept in the output with the filename only.
	MergedMarker string

	// MinFileSize rejects truncated downloads before parsing. Zero disables
	// the check.
	MinFileSize int64
}

// DefaultPolicy mirrors production behavior.
func DefaultPolicy() Policy {
	return Policy{MergedMarker: "MERGED", MinFileSize: 1024}
}

// Extractor parses .docx documents, individually or inside zip archives.
type Extractor struct {
	policy Policy
	log    *slog.Logger
}

// New builds an Extractor with the given policy.
func New(policy Policy, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{policy: policy, log: log}
}

// supported document extensions, lowercased
func isDocumentName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".doc", ".docx":
		return true
	}
	return false
}

// validate rejects files that cannot possibly parse, before any parsing work.
func (e *Extractor) validate(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("document %s is empty: %w", path, faults.ErrMalformedInput)
	}
	if e.policy.MinFileSize > 0 && fi.Size() < e.policy.MinFileSize {
		return fmt.Errorf("document %s is %d bytes, below the %d byte minimum: %w",
			path, fi.Size(), e.policy.MinFileSize, faults.ErrMalformedInput)
	}
	if !isDocumentName(path) {
		return fmt.Errorf("unsupported document extension %q: %w",
			filepath.Ext(path), faults.ErrMalformedInput)
	}
	return nil
}

// Text pulls the plain text out of a document file. Legacy .doc files that
// are really OOXML containers (a common mislabeling at the source) parse the
// same way; genuinely binary .doc files fail as malformed input.
func (e *Extractor) Text(path string) (string, error) {
	if err := e.validate(path); err != nil {
		return "", err
	}
	return TextFromDocx(path)
}

// ProcessDocument extracts text from one document and parses it into a
// record. The returned record always carries the source filename.
func (e *Extractor) ProcessDocument(path string) (domain.Record, error) {
	name := filepath.Base(path)

	text, err := e.Text(path)
	if err != nil {
		return domain.Record{SourceFile: name}, err
	}

	rec := ParseFields(text, name, e.policy.MergedMarker)
	if rec.IsEmpty() {
		e.log.Warn("no fields recognized in document", "file", name, "chars", len(text))
	} else {
		e.log.Debug("document parsed", "file", name)
	}
	return rec, nil
}

// ProcessZip expands the documents inside a zip payload into workDir and
// parses each one. A document that fails to parse is logged and skipped; the
// archive as a whole only errors when it cannot be opened at all. Expanded
// files are removed before returning.
func (e *Extractor) ProcessZip(zipPath, workDir string) ([]domain.Record, error) {
	paths, err := e.unpackDocuments(zipPath, workDir)
	defer func() {
		for _, p := range paths {
			if rmErr := os.Remove(p); rmErr != nil {
				e.log.Warn("could not remove unpacked document", "file", p, "error", rmErr)
			}
		}
	}()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		e.log.Warn("archive holds no documents", "archive", zipPath)
		return nil, nil
	}

	var records []domain.Record
	for _, p := range paths {
		rec, err := e.ProcessDocument(p)
		if err != nil {
			e.log.Error("document inside archive failed to parse",
				"archive", filepath.Base(zipPath), "file", filepath.Base(p), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// unpackDocuments copies the .doc/.docx entries of a zip archive into dir,
// flattening any internal directory structure. Entry names are sanitized to
// their base name so a crafted archive cannot write outside dir.
func (e *Extractor) unpackDocuments(zipPath, dir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w: %v", zipPath, faults.ErrMalformedInput, err)
	}
	defer zr.Close()

	var out []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isDocumentName(f.Name) {
			continue
		}
		dst := filepath.Join(dir, filepath.Base(f.Name))
		if err := copyZipEntry(f, dst); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func copyZipEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer w.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
