package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/stemsi/labquiz/internal/model"
)

// CSVResponseStore keeps the response ledger in a single CSV file.
// Every operation rereads the file under the store mutex, so the duplicate
// check and the append of Insert happen in one critical section.
type CSVResponseStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVResponseStore creates a store backed by path. The file is created lazily.
func NewCSVResponseStore(path string) *CSVResponseStore {
	return &CSVResponseStore{path: path}
}

// Path returns the backing file path.
func (s *CSVResponseStore) Path() string { return s.path }

// Insert appends rec unless the (student, question) pair is already present.
func (s *CSVResponseStore) Insert(_ context.Context, rec model.ResponseRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, exists, err := s.load()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.StudentID == rec.StudentID && r.QuestionID == rec.QuestionID {
			return false, nil
		}
	}

	if !exists {
		if err := s.rewrite(nil); err != nil {
			return false, err
		}
	}
	if err := s.appendRow(rec); err != nil {
		return false, err
	}
	return true, nil
}

// List returns every record in file order.
func (s *CSVResponseStore) List(_ context.Context) ([]model.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	return records, err
}

// ListByStudent returns the records of one student in file order.
func (s *CSVResponseStore) ListByStudent(_ context.Context, studentID string) ([]model.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []model.ResponseRecord
	for _, r := range records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteByStudent rewrites the file without the student's records and returns them.
func (s *CSVResponseStore) DeleteByStudent(_ context.Context, studentID string) ([]model.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return nil, err
	}

	var kept, removed []model.ResponseRecord
	for _, r := range records {
		if r.StudentID == studentID {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.rewrite(kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// Reset moves an unreadable file aside and writes a header-only file in its place.
func (s *CSVResponseStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102_150405"))
		if err := os.Rename(s.path, aside); err != nil {
			return fmt.Errorf("move corrupt store aside: %w", err)
		}
	}
	return s.rewrite(nil)
}

// load reads the whole file. A missing or empty file is an empty ledger.
func (s *CSVResponseStore) load() ([]model.ResponseRecord, bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open response store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat response store: %w", err)
	}
	if info.Size() == 0 {
		return nil, false, nil
	}

	records, err := readRecords(f)
	if err != nil {
		return nil, true, err
	}
	return records, true, nil
}

func (s *CSVResponseStore) appendRow(rec model.ResponseRecord) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open response store for append: %w", err)
	}
	defer f.Close()

	if err := writeRows(f, [][]string{encodeRecord(rec)}); err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return f.Sync()
}

// rewrite replaces the file with a header followed by records.
func (s *CSVResponseStore) rewrite(records []model.ResponseRecord) error {
	err := replaceFile(s.path, func(w io.Writer) error { return writeRecords(w, records) })
	if err != nil {
		return fmt.Errorf("rewrite response store: %w", err)
	}
	return nil
}
