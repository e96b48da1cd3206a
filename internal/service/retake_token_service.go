package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
)

// RetakeTokenService issues and consumes single-use retake tokens.
type RetakeTokenService struct {
	store repository.TokenStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewRetakeTokenService creates a new RetakeTokenService.
func NewRetakeTokenService(store repository.TokenStore, log zerolog.Logger) *RetakeTokenService {
	return &RetakeTokenService{
		store: store,
		log:   log.With().Str("component", "retake_tokens").Logger(),
		now:   time.Now,
	}
}

// Issue creates a token for studentID, replacing any live one (last issued wins).
func (s *RetakeTokenService) Issue(ctx context.Context, studentID string) (model.RetakeToken, error) {
	now := s.now()
	tok := model.RetakeToken{
		StudentID: studentID,
		Token:     fmt.Sprintf("RT-%s-%d", studentID, now.Unix()),
		CreatedAt: now.Truncate(time.Second),
	}
	err := s.withRecovery(ctx, func() error { return s.store.Put(ctx, tok) })
	if err != nil {
		return model.RetakeToken{}, fmt.Errorf("issue retake token: %w", err)
	}
	s.log.Info().Str("student_id", studentID).Msg("Retake token issued")
	return tok, nil
}

// Peek reports the live token of a student without consuming it.
func (s *RetakeTokenService) Peek(ctx context.Context, studentID string) (model.RetakeToken, bool, error) {
	var tok model.RetakeToken
	err := s.withRecovery(ctx, func() error {
		var err error
		tok, err = s.store.Get(ctx, studentID)
		return err
	})
	if errors.Is(err, repository.ErrTokenNotFound) {
		return model.RetakeToken{}, false, nil
	}
	if err != nil {
		return model.RetakeToken{}, false, fmt.Errorf("peek retake token: %w", err)
	}
	return tok, true, nil
}

// Consume deletes the student's token and reports whether one existed.
// Exactly one of several concurrent callers observes true.
func (s *RetakeTokenService) Consume(ctx context.Context, studentID string) (bool, error) {
	var ok bool
	err := s.withRecovery(ctx, func() error {
		var err error
		ok, err = s.store.Delete(ctx, studentID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("consume retake token: %w", err)
	}
	if ok {
		s.log.Info().Str("student_id", studentID).Msg("Retake token consumed")
	}
	return ok, nil
}

func (s *RetakeTokenService) withRecovery(ctx context.Context, op func() error) error {
	err := op()
	if !errors.Is(err, repository.ErrStoreCorrupt) {
		return err
	}
	s.log.Warn().Err(err).Msg("Token store corrupt, reinitializing")
	if resetErr := s.store.Reset(ctx); resetErr != nil {
		return resetErr
	}
	return op()
}
