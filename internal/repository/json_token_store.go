package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/stemsi/labquiz/internal/model"
)

// JSONTokenStore keeps retake tokens in a JSON object file keyed by student id.
// Every mutation is a read-modify-write under the store mutex.
type JSONTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONTokenStore creates a store backed by path. A missing file is an empty store.
func NewJSONTokenStore(path string) *JSONTokenStore {
	return &JSONTokenStore{path: path}
}

func (s *JSONTokenStore) Put(_ context.Context, tok model.RetakeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[tok.StudentID] = toEntry(tok)
	return s.save(entries)
}

func (s *JSONTokenStore) Get(_ context.Context, studentID string) (model.RetakeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return model.RetakeToken{}, err
	}
	e, ok := entries[studentID]
	if !ok {
		return model.RetakeToken{}, ErrTokenNotFound
	}
	return fromEntry(studentID, e), nil
}

func (s *JSONTokenStore) Delete(_ context.Context, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := entries[studentID]; !ok {
		return false, nil
	}
	delete(entries, studentID)
	if err := s.save(entries); err != nil {
		return false, err
	}
	return true, nil
}

// Reset overwrites the file with an empty object.
func (s *JSONTokenStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]tokenEntry{})
}

func (s *JSONTokenStore) load() (map[string]tokenEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]tokenEntry{}, nil
		}
		return nil, fmt.Errorf("read token store: %w", err)
	}
	entries := map[string]tokenEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return entries, nil
}

func (s *JSONTokenStore) save(entries map[string]tokenEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	err = replaceFile(s.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	return nil
}
