package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
)

// AdminService serves result queries and the two-phase retake workflow.
type AdminService struct {
	ledger   *LedgerService
	tokens   *RetakeTokenService
	registry *SessionRegistry
	bank     *repository.QuestionBank
	roster   *repository.Roster
	log      zerolog.Logger

	// retakeMu serializes confirmations so archive and issue act as one unit.
	retakeMu sync.Mutex
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	ledger *LedgerService,
	tokens *RetakeTokenService,
	registry *SessionRegistry,
	bank *repository.QuestionBank,
	roster *repository.Roster,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{
		ledger:   ledger,
		tokens:   tokens,
		registry: registry,
		bank:     bank,
		roster:   roster,
		log:      log.With().Str("component", "admin").Logger(),
	}
}

// PreviewRetake is the query phase: it describes what a confirmation would do
// and mutates nothing.
func (s *AdminService) PreviewRetake(ctx context.Context, studentID string) (*model.RetakePreview, error) {
	studentID = repository.NormalizeRollNumber(studentID)
	if studentID == "" {
		return nil, ErrStudentNotFound
	}

	count, err := s.ledger.Count(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if count == 0 && !s.known(studentID) {
		return nil, ErrStudentNotFound
	}
	_, hasToken, err := s.tokens.Peek(ctx, studentID)
	if err != nil {
		return nil, err
	}

	preview := &model.RetakePreview{
		StudentID:     studentID,
		ResponseCount: count,
		HasLiveToken:  hasToken,
		ActiveSession: s.registry.Contains(studentID),
	}
	switch {
	case preview.ActiveSession:
		preview.Message = fmt.Sprintf("%s is taking the quiz right now. Reset the session before granting a retake.", studentID)
	case count == 0:
		preview.Message = fmt.Sprintf("%s has no responses. Confirming issues a retake token anyway.", studentID)
	default:
		preview.Message = fmt.Sprintf("Confirming archives %d responses of %s and issues a retake token.", count, studentID)
	}
	return preview, nil
}

// ConfirmRetake archives the student's responses, removes them from the live
// ledger, refreshes the marksheet and issues a fresh retake token.
func (s *AdminService) ConfirmRetake(ctx context.Context, req model.RetakeRequest) (*model.RetakeResult, error) {
	if !req.Confirm {
		return nil, ErrConfirmationRequired
	}
	studentID := repository.NormalizeRollNumber(req.StudentID)
	if studentID == "" {
		return nil, ErrStudentNotFound
	}

	s.retakeMu.Lock()
	defer s.retakeMu.Unlock()

	// Holding the slot keeps logins out until the new token is in place.
	slot, ok := s.registry.Reserve(studentID)
	if !ok {
		return nil, ErrStudentMidAttempt
	}
	defer slot.Abort()

	path, archived, err := s.ledger.Archive(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("archive responses: %w", err)
	}
	tok, err := s.tokens.Issue(ctx, studentID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("student_id", studentID).Int("archived", archived).Msg("Retake granted")

	return &model.RetakeResult{
		StudentID:   studentID,
		Archived:    archived,
		ArchivePath: path,
		Token:       tok.Token,
		Message:     fmt.Sprintf("Archived %d responses. %s can log in again.", archived, studentID),
	}, nil
}

// known reports whether the student is on the roster. Without a roster every id is accepted.
func (s *AdminService) known(studentID string) bool {
	if s.roster == nil {
		return true
	}
	_, ok := s.roster.Lookup(studentID)
	return ok
}

// Results returns the per-student overview.
func (s *AdminService) Results(ctx context.Context) ([]model.StudentSummary, error) {
	return s.ledger.Summaries(ctx)
}

// AllResponses returns every ledger record.
func (s *AdminService) AllResponses(ctx context.Context) ([]model.ResponseRecord, error) {
	return s.ledger.All(ctx)
}

// StudentResponses returns one student's records with question text and score.
func (s *AdminService) StudentResponses(ctx context.Context, studentID string) ([]model.ReviewedResponse, model.Score, error) {
	studentID = repository.NormalizeRollNumber(studentID)
	records, err := s.ledger.ForStudent(ctx, studentID)
	if err != nil {
		return nil, model.Score{}, err
	}
	if len(records) == 0 {
		return nil, model.Score{}, ErrStudentNotFound
	}

	out := make([]model.ReviewedResponse, len(records))
	for i, r := range records {
		out[i] = model.ReviewedResponse{ResponseRecord: r}
		if q, ok := s.bank.Get(r.QuestionID); ok {
			out[i].QuestionText = q.Text
		}
	}
	score, err := ComputeScore(records)
	return out, score, err
}

// Marksheet returns the derived marksheet rows.
func (s *AdminService) Marksheet(ctx context.Context) ([]model.MarksheetRow, error) {
	return s.ledger.Marksheet(ctx)
}
