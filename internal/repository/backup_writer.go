package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/labquiz/internal/model"
)

// BackupWriter writes standalone response tables next to the live store:
// archives taken before a retake, and spill files for writes the store refused.
type BackupWriter struct {
	dir string
}

// NewBackupWriter creates a writer rooted at dir.
func NewBackupWriter(dir string) *BackupWriter {
	return &BackupWriter{dir: dir}
}

// Archive writes a student's records to responses_backup_<student>_<YYYYMMDD_HHMMSS>.csv.
// A second archive for the same student within one second gets a numeric suffix.
func (w *BackupWriter) Archive(studentID string, records []model.ResponseRecord, now time.Time) (string, error) {
	base := fmt.Sprintf("responses_backup_%s_%s", sanitizeFileComponent(studentID), now.Format("20060102_150405"))
	path := filepath.Join(w.dir, base+".csv")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%d.csv", base, i))
	}
	if err := w.write(path, records); err != nil {
		return "", fmt.Errorf("archive responses: %w", err)
	}
	return path, nil
}

// Spill writes records that could not be persisted to responses_backup_<unix>_<uuid8>.csv.
func (w *BackupWriter) Spill(records []model.ResponseRecord, now time.Time) (string, error) {
	name := fmt.Sprintf("responses_backup_%d_%s.csv", now.Unix(), uuid.NewString()[:8])
	path := filepath.Join(w.dir, name)
	if err := w.write(path, records); err != nil {
		return "", fmt.Errorf("spill responses: %w", err)
	}
	return path, nil
}

func (w *BackupWriter) write(path string, records []model.ResponseRecord) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := writeRecords(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sanitizeFileComponent keeps roll numbers like 2021-EE-314 intact and replaces path separators.
func sanitizeFileComponent(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
