package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
)

// unenforcedTokenTTL is how long a student token outlives the deadline when the
// server does not enforce the time limit.
const unenforcedTokenTTL = 12 * time.Hour

// LoginInput is a normalized student login attempt.
type LoginInput struct {
	RollNumber string
	Password   string
	IP         string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Retake    bool              `json:"retake"`
	Session   model.SessionView `json:"session"`
}

// SubmitInput is a terminal submission. An empty SessionID skips the session check.
type SubmitInput struct {
	StudentID string
	SessionID string
	Answers   map[int]string
	Status    model.SubmissionStatus
	IP        string
}

// ExamSessionService drives an attempt from login to its terminal state.
type ExamSessionService struct {
	cfg         *config.Config
	credentials *CredentialService
	bank        *repository.QuestionBank
	ledger      *LedgerService
	tokens      *RetakeTokenService
	registry    *SessionRegistry
	auth        *AuthService
	log         zerolog.Logger
	now         func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	cfg *config.Config,
	credentials *CredentialService,
	bank *repository.QuestionBank,
	ledger *LedgerService,
	tokens *RetakeTokenService,
	registry *SessionRegistry,
	auth *AuthService,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		cfg:         cfg,
		credentials: credentials,
		bank:        bank,
		ledger:      ledger,
		tokens:      tokens,
		registry:    registry,
		auth:        auth,
		log:         log.With().Str("component", "exam_session").Logger(),
		now:         time.Now,
	}
}

// Login validates a student and opens an Active session.
func (s *ExamSessionService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	studentID := repository.NormalizeRollNumber(in.RollNumber)
	if studentID == "" {
		return nil, newLoginError(ReasonEmptyRollNumber)
	}
	if s.cfg.EnablePasswordAuth {
		password := strings.TrimSpace(in.Password)
		if password == "" {
			return nil, newLoginError(ReasonMissingPassword)
		}
		if err := s.credentials.Verify(studentID, password); err != nil {
			s.log.Info().Str("student_id", studentID).Err(err).Msg("Login rejected")
			return nil, err
		}
	}

	res, ok := s.registry.Reserve(studentID)
	if !ok {
		s.log.Warn().Str("student_id", studentID).Str("ip", in.IP).Msg("Login rejected: session already active")
		return nil, newLoginError(ReasonSessionActive)
	}
	committed := false
	defer func() {
		if !committed {
			res.Abort()
		}
	}()

	if s.bank.Len() < s.cfg.NumQuestions {
		s.log.Error().Int("bank", s.bank.Len()).Int("quiz_size", s.cfg.NumQuestions).
			Msg("Question bank smaller than quiz size")
		return nil, newLoginError(ReasonInsufficientQuestion)
	}

	count, err := s.ledger.Count(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("check previous attempt: %w", err)
	}
	hasTaken := count >= s.cfg.NumQuestions

	now := s.now()
	sessionID := uuid.New().String()
	state := newSessionState(sessionID, studentID, CleanIP(in.IP), now, s.cfg.QuizDuration, s.sample())

	expiresAt := state.Deadline.Add(s.cfg.SubmitGrace)
	if !s.cfg.EnforceTimeLimit {
		expiresAt = state.Deadline.Add(unenforcedTokenTTL)
	}
	token, err := s.auth.GenerateStudentToken(studentID, sessionID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	// Consumption is the eligibility grant for a repeat attempt.
	consumed, err := s.tokens.Consume(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if hasTaken && !consumed {
		s.log.Info().Str("student_id", studentID).Msg("Login rejected: already attempted")
		return nil, newLoginError(ReasonAlreadyAttempted)
	}

	res.Commit(state)
	committed = true

	s.log.Info().
		Str("student_id", studentID).
		Str("session_id", sessionID).
		Str("ip", state.IP).
		Bool("retake", consumed).
		Msg("Session started")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Retake:    consumed,
		Session:   state.View(now),
	}, nil
}

// sample draws NumQuestions questions uniformly without replacement.
func (s *ExamSessionService) sample() []model.Question {
	all := s.bank.All()
	pool := make([]model.Question, len(all))
	copy(pool, all)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:s.cfg.NumQuestions]
}

// Resume returns the live session view. A session past its grace period is
// submitted as a timeout and the terminal result is returned instead.
func (s *ExamSessionService) Resume(ctx context.Context, studentID, sessionID string) (*model.SessionView, *model.SubmissionResult, error) {
	state, err := s.lookup(studentID, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			result, ackErr := s.alreadySubmitted(ctx, studentID)
			return nil, result, ackErr
		}
		return nil, nil, err
	}

	now := s.now()
	if s.overdue(state, now) {
		result, err := s.finish(ctx, state, nil, model.StatusTimeout, state.IP)
		return nil, result, err
	}
	view := state.View(now)
	return &view, nil, nil
}

// Autosave stores the current selection for one assigned question.
func (s *ExamSessionService) Autosave(_ context.Context, studentID, sessionID string, questionID int, option string) error {
	state, err := s.lookup(studentID, sessionID)
	if err != nil {
		return err
	}
	if s.overdue(state, s.now()) {
		return ErrTimeUp
	}
	return state.SetAnswer(questionID, option)
}

// Submit records every assigned question and returns the score. A retried or
// racing submission for an already recorded attempt yields ALREADY_SUBMITTED.
func (s *ExamSessionService) Submit(ctx context.Context, in SubmitInput) (*model.SubmissionResult, error) {
	status := in.Status
	if status == "" {
		status = model.StatusOK
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	studentID := repository.NormalizeRollNumber(in.StudentID)
	state, err := s.lookup(studentID, in.SessionID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			return s.alreadySubmitted(ctx, studentID)
		}
		return nil, err
	}

	ip := in.IP
	if ip == "" {
		ip = state.IP
	}
	if s.overdue(state, s.now()) {
		// Late submissions cannot change answers.
		return s.finish(ctx, state, nil, model.StatusTimeout, ip)
	}
	return s.finish(ctx, state, in.Answers, status, ip)
}

// Logout ends a session without recording responses.
func (s *ExamSessionService) Logout(_ context.Context, studentID, sessionID string) error {
	state, err := s.lookup(studentID, sessionID)
	if err != nil {
		return err
	}
	s.discard(state)
	s.log.Info().Str("student_id", studentID).Str("session_id", state.ID).Msg("Session closed by logout")
	return nil
}

// ResetSession removes a student's Active session without recording responses.
func (s *ExamSessionService) ResetSession(_ context.Context, studentID string) error {
	state, ok := s.registry.Get(repository.NormalizeRollNumber(studentID))
	if !ok {
		return ErrNoActiveSession
	}
	s.discard(state)
	s.log.Warn().Str("student_id", state.StudentID).Str("session_id", state.ID).Msg("Session reset by admin")
	return nil
}

// ActiveSessions lists every Active session.
func (s *ExamSessionService) ActiveSessions() []model.ActiveSessionInfo {
	states := s.registry.Sessions()
	out := make([]model.ActiveSessionInfo, len(states))
	for i, st := range states {
		out[i] = st.info()
	}
	return out
}

// ExpireOverdue submits every session past its deadline plus grace as a timeout.
// It does nothing unless the time limit is enforced.
func (s *ExamSessionService) ExpireOverdue(ctx context.Context) int {
	if !s.cfg.EnforceTimeLimit {
		return 0
	}
	now := s.now()
	expired := 0
	for _, state := range s.registry.Sessions() {
		if !s.overdue(state, now) {
			continue
		}
		if _, err := s.finish(ctx, state, nil, model.StatusTimeout, state.IP); err != nil {
			s.log.Error().Err(err).Str("student_id", state.StudentID).Msg("Failed to expire session")
			continue
		}
		expired++
	}
	return expired
}

// lookup resolves the Active session of a student and checks its id.
func (s *ExamSessionService) lookup(studentID, sessionID string) (*SessionState, error) {
	state, ok := s.registry.Get(studentID)
	if !ok {
		return nil, ErrNoActiveSession
	}
	if sessionID != "" && state.ID != sessionID {
		return nil, ErrSessionInvalidated
	}
	return state, nil
}

func (s *ExamSessionService) overdue(state *SessionState, now time.Time) bool {
	return s.cfg.EnforceTimeLimit && now.After(state.Deadline.Add(s.cfg.SubmitGrace))
}

// finish moves a session to its terminal state exactly once.
func (s *ExamSessionService) finish(
	ctx context.Context,
	state *SessionState,
	answers map[int]string,
	status model.SubmissionStatus,
	ip string,
) (*model.SubmissionResult, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.finished {
		return s.acknowledge(ctx, state.StudentID), nil
	}

	count, err := s.ledger.Count(ctx, state.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check previous submission: %w", err)
	}
	if count >= s.cfg.NumQuestions {
		state.finished = true
		s.registry.Remove(state.StudentID, state.ID)
		return s.acknowledge(ctx, state.StudentID), nil
	}

	inputs := make([]ResponseInput, len(state.Questions))
	for i, q := range state.Questions {
		selected, ok := answers[q.ID]
		if !ok || selected == "" {
			selected = state.answers[q.ID]
		}
		inputs[i] = ResponseInput{
			StudentID:  state.StudentID,
			QuestionID: q.ID,
			Selected:   selected,
			Correct:    q.Correct,
			IP:         ip,
			Status:     status,
		}
	}

	sum, recordErr := s.ledger.RecordAll(ctx, inputs)
	state.finished = true
	s.registry.Remove(state.StudentID, state.ID)

	result := &model.SubmissionResult{
		StudentID: state.StudentID,
		Outcome:   model.OutcomeScored,
		Status:    status,
		Message:   "Quiz submitted successfully",
	}
	if score, err := s.ledger.Score(ctx, state.StudentID); err == nil {
		result.Score = &score
	} else if score, err := scoreInputs(inputs); err == nil {
		result.Score = &score
	}
	if recordErr != nil {
		s.log.Error().Err(recordErr).Str("student_id", state.StudentID).Msg("Submission not fully persisted")
		result.Message = "Quiz submitted. Some answers were saved to a backup file; contact the administrator."
	}

	event := s.log.Info()
	if status.IsViolation() || status == model.StatusTimeout {
		event = s.log.Warn()
	}
	event.
		Str("student_id", state.StudentID).
		Str("session_id", state.ID).
		Str("status", string(status)).
		Int("inserted", sum.Inserted).
		Int("duplicates", sum.Duplicates).
		Msg("Session submitted")

	return result, nil
}

// discard ends a session without recording anything.
func (s *ExamSessionService) discard(state *SessionState) {
	state.mu.Lock()
	state.finished = true
	state.mu.Unlock()
	s.registry.Remove(state.StudentID, state.ID)
}

// alreadySubmitted answers a request that has no Active session behind it.
func (s *ExamSessionService) alreadySubmitted(ctx context.Context, studentID string) (*model.SubmissionResult, error) {
	count, err := s.ledger.Count(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if count < s.cfg.NumQuestions {
		return nil, ErrNoActiveSession
	}
	return s.acknowledge(ctx, studentID), nil
}

func (s *ExamSessionService) acknowledge(ctx context.Context, studentID string) *model.SubmissionResult {
	result := &model.SubmissionResult{
		StudentID: studentID,
		Outcome:   model.OutcomeAlreadySubmitted,
		Message:   "Your answers have already been submitted",
	}
	if score, err := s.ledger.Score(ctx, studentID); err == nil {
		result.Score = &score
	}
	return result
}

func scoreInputs(inputs []ResponseInput) (model.Score, error) {
	records := make([]model.ResponseRecord, len(inputs))
	for i, in := range inputs {
		selected := repository.NormalizeOption(in.Selected)
		if selected == "" {
			selected = model.NoAnswer
		}
		records[i].IsCorrect = selected == repository.NormalizeOption(in.Correct)
	}
	return ComputeScore(records)
}
