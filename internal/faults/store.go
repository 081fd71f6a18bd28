package faults

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is an append-only JSONL file of error records.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates the store directory if needed and returns a Store writing
// to <dir>/error_records.jsonl.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create error store dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "error_records.jsonl")}, nil
}

// Path returns the underlying file path.
func (s *Store) Path() string { return s.path }

// Append writes one record as a JSON line.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error store: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append error record: %w", err)
	}
	return nil
}

// Load reads all records currently in the store, skipping malformed lines.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open error store: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}

// Prune rewrites the store keeping only records at or after cutoff.
// The rewrite goes through a temp file which then replaces the original, so
// a crash mid-prune never loses the store.
func (s *Store) Prune(cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open error store: %w", err)
	}
	defer in.Close()

	tmpPath := s.path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue // drop malformed lines
		}
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		if _, err := out.Write(append(sc.Bytes(), '\n')); err != nil {
			out.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write temp store: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("scan error store: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace error store: %w", err)
	}
	return nil
}
