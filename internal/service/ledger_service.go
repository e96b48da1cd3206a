package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
)

// MarksheetNotifier is told that ledger contents changed.
type MarksheetNotifier interface {
	Notify()
}

// ResponseInput is one answer to be recorded.
type ResponseInput struct {
	StudentID  string
	QuestionID int
	Selected   string
	Correct    string
	IP         string
	Status     model.SubmissionStatus
}

// RecordSummary reports the outcome of RecordAll.
type RecordSummary struct {
	Inserted   int
	Duplicates int
	Spilled    int
	SpillPath  string
}

// LedgerService is the append-only, duplicate-guarded response ledger.
type LedgerService struct {
	store    repository.ResponseStore
	backups  *repository.BackupWriter
	stations *WorkstationMap
	notifier MarksheetNotifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewLedgerService creates a new LedgerService. notifier may be nil.
func NewLedgerService(
	store repository.ResponseStore,
	backups *repository.BackupWriter,
	stations *WorkstationMap,
	notifier MarksheetNotifier,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		store:    store,
		backups:  backups,
		stations: stations,
		notifier: notifier,
		log:      log.With().Str("component", "response_ledger").Logger(),
		now:      time.Now,
	}
}

// SetNotifier attaches the marksheet notifier after construction.
func (s *LedgerService) SetNotifier(n MarksheetNotifier) { s.notifier = n }

// Record stores a single answer. A duplicate (student, question) pair is a no-op.
func (s *LedgerService) Record(ctx context.Context, in ResponseInput) (bool, error) {
	sum, err := s.RecordAll(ctx, []ResponseInput{in})
	return sum.Inserted == 1, err
}

// RecordAll stores answers one by one. Records the store refuses even after a
// reset are spilled together to a backup file and ErrResponsesSpilled is returned.
func (s *LedgerService) RecordAll(ctx context.Context, inputs []ResponseInput) (RecordSummary, error) {
	var sum RecordSummary
	var failed []model.ResponseRecord
	var lastErr error

	for _, in := range inputs {
		rec := s.buildRecord(in)

		var inserted bool
		err := s.withRecovery(ctx, "insert", func() error {
			var err error
			inserted, err = s.store.Insert(ctx, rec)
			return err
		})
		switch {
		case err != nil:
			lastErr = err
			failed = append(failed, rec)
		case inserted:
			sum.Inserted++
		default:
			sum.Duplicates++
			s.log.Info().
				Str("student_id", rec.StudentID).
				Int("question_id", rec.QuestionID).
				Msg("Duplicate response ignored")
		}
	}

	if sum.Inserted > 0 {
		s.notify()
	}
	if len(failed) == 0 {
		return sum, nil
	}

	sum.Spilled = len(failed)
	path, err := s.backups.Spill(failed, s.now())
	if err != nil {
		s.log.Error().Err(err).AnErr("store_error", lastErr).Int("records", len(failed)).
			Msg("Failed to spill responses")
		return sum, fmt.Errorf("record responses: %w (spill: %v)", lastErr, err)
	}
	sum.SpillPath = path
	s.log.Error().Err(lastErr).Str("path", path).Int("records", len(failed)).
		Msg("Responses spilled to backup file")
	return sum, fmt.Errorf("%w: %s: %v", ErrResponsesSpilled, path, lastErr)
}

func (s *LedgerService) buildRecord(in ResponseInput) model.ResponseRecord {
	selected := repository.NormalizeOption(in.Selected)
	if selected == "" {
		selected = model.NoAnswer
	}
	correct := repository.NormalizeOption(in.Correct)
	status := in.Status
	if status == "" {
		status = model.StatusOK
	}
	return model.ResponseRecord{
		StudentID:      in.StudentID,
		QuestionID:     in.QuestionID,
		SelectedOption: selected,
		CorrectOption:  correct,
		IsCorrect:      selected == correct,
		Timestamp:      s.now().Truncate(time.Second),
		IP:             CleanIP(in.IP),
		Workstation:    s.stations.LabelFor(in.IP),
		Status:         status,
	}
}

// Score aggregates a student's records. ErrNoData is returned when none exist.
func (s *LedgerService) Score(ctx context.Context, studentID string) (model.Score, error) {
	records, err := s.ForStudent(ctx, studentID)
	if err != nil {
		return model.Score{}, err
	}
	return ComputeScore(records)
}

// Count returns the number of records a student holds.
func (s *LedgerService) Count(ctx context.Context, studentID string) (int, error) {
	records, err := s.ForStudent(ctx, studentID)
	return len(records), err
}

// ForStudent returns a student's records in insertion order.
func (s *LedgerService) ForStudent(ctx context.Context, studentID string) ([]model.ResponseRecord, error) {
	var records []model.ResponseRecord
	err := s.withRecovery(ctx, "list student", func() error {
		var err error
		records, err = s.store.ListByStudent(ctx, studentID)
		return err
	})
	return records, err
}

// All returns every record in insertion order.
func (s *LedgerService) All(ctx context.Context) ([]model.ResponseRecord, error) {
	var records []model.ResponseRecord
	err := s.withRecovery(ctx, "list", func() error {
		var err error
		records, err = s.store.List(ctx)
		return err
	})
	return records, err
}

// Archive writes a student's records to a timestamped backup and removes them
// from the live ledger. It returns the archive path and the number of rows moved.
func (s *LedgerService) Archive(ctx context.Context, studentID string) (string, int, error) {
	records, err := s.ForStudent(ctx, studentID)
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, nil
	}

	now := s.now()
	path, err := s.backups.Archive(studentID, records, now)
	if err != nil {
		return "", 0, err
	}

	removed, err := s.store.DeleteByStudent(ctx, studentID)
	if err != nil {
		return path, 0, fmt.Errorf("delete archived responses: %w", err)
	}
	if extra := unarchived(records, removed); len(extra) > 0 {
		// Rows appended between the read and the delete.
		if _, err := s.backups.Archive(studentID, extra, now); err != nil {
			s.log.Error().Err(err).Str("student_id", studentID).Int("records", len(extra)).
				Msg("Failed to archive late responses")
		}
	}

	s.notify()
	s.log.Info().Str("student_id", studentID).Int("records", len(removed)).Str("path", path).
		Msg("Responses archived")
	return path, len(removed), nil
}

// Marksheet derives the per-student marksheet from the whole ledger.
func (s *LedgerService) Marksheet(ctx context.Context) ([]model.MarksheetRow, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMarksheet(records), nil
}

// Summaries returns the admin results overview, sorted by student id.
func (s *LedgerService) Summaries(ctx context.Context) ([]model.StudentSummary, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSummaries(records), nil
}

// withRecovery runs op, and on ErrStoreCorrupt resets the store and runs it once more.
func (s *LedgerService) withRecovery(ctx context.Context, what string, op func() error) error {
	err := op()
	if !errors.Is(err, repository.ErrStoreCorrupt) {
		return err
	}

	s.log.Warn().Err(err).Str("op", what).Msg("Response store corrupt, reinitializing")
	if resetErr := s.store.Reset(ctx); resetErr != nil {
		return fmt.Errorf("reset response store: %w", resetErr)
	}
	return op()
}

func (s *LedgerService) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

// ComputeScore returns {correct, total, percentage} with percentage rounded to
// two decimals, or ErrNoData for an empty slice.
func ComputeScore(records []model.ResponseRecord) (model.Score, error) {
	if len(records) == 0 {
		return model.Score{}, ErrNoData
	}
	correct := 0
	for _, r := range records {
		if r.IsCorrect {
			correct++
		}
	}
	return model.Score{
		Correct:    correct,
		Total:      len(records),
		Percentage: roundPercent(correct, len(records)),
	}, nil
}

func roundPercent(part, whole int) float64 {
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

// BuildMarksheet groups records by student: correct answers summed, workstation
// and status taken from the student's last record. Rows are sorted by student id.
func BuildMarksheet(records []model.ResponseRecord) []model.MarksheetRow {
	idx := make(map[string]int)
	var rows []model.MarksheetRow
	for _, r := range records {
		i, ok := idx[r.StudentID]
		if !ok {
			i = len(rows)
			idx[r.StudentID] = i
			rows = append(rows, model.MarksheetRow{StudentID: r.StudentID})
		}
		if r.IsCorrect {
			rows[i].TotalScore++
		}
		rows[i].Workstation = r.Workstation
		rows[i].Status = r.Status
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].StudentID < rows[b].StudentID })
	return rows
}

// BuildSummaries is BuildMarksheet with totals, percentages, IP and time of the last record.
func BuildSummaries(records []model.ResponseRecord) []model.StudentSummary {
	idx := make(map[string]int)
	var out []model.StudentSummary
	for _, r := range records {
		i, ok := idx[r.StudentID]
		if !ok {
			i = len(out)
			idx[r.StudentID] = i
			out = append(out, model.StudentSummary{StudentID: r.StudentID})
		}
		sum := &out[i]
		sum.Score.Total++
		if r.IsCorrect {
			sum.Score.Correct++
		}
		sum.Workstation = r.Workstation
		sum.Status = r.Status
		sum.IP = r.IP
		sum.SubmittedAt = r.Timestamp
	}
	for i := range out {
		out[i].Score.Percentage = roundPercent(out[i].Score.Correct, out[i].Score.Total)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StudentID < out[b].StudentID })
	return out
}

func unarchived(archived, removed []model.ResponseRecord) []model.ResponseRecord {
	seen := make(map[int]bool, len(archived))
	for _, r := range archived {
		seen[r.QuestionID] = true
	}
	var extra []model.ResponseRecord
	for _, r := range removed {
		if !seen[r.QuestionID] {
			extra = append(extra, r)
		}
	}
	return extra
}
