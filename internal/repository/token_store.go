package repository

import (
	"context"

	"github.com/stemsi/labquiz/internal/model"
)

// TokenStore persists at most one RetakeToken per student.
type TokenStore interface {
	// Put stores tok, replacing any token held by the same student.
	Put(ctx context.Context, tok model.RetakeToken) error
	// Get returns ErrTokenNotFound when the student holds no token.
	Get(ctx context.Context, studentID string) (model.RetakeToken, error)
	// Delete removes the student's token and reports whether one existed.
	// Two concurrent Deletes for the same student never both report true.
	Delete(ctx context.Context, studentID string) (bool, error)
	// Reset reinitializes an unreadable store to an empty mapping.
	Reset(ctx context.Context) error
}

// tokenEntry is the persisted value shape: {"token": "...", "created_at": "YYYY-MM-DD HH:MM:SS"}.
type tokenEntry struct {
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
}

func toEntry(tok model.RetakeToken) tokenEntry {
	return tokenEntry{Token: tok.Token, CreatedAt: tok.CreatedAt.Format(model.TimestampLayout)}
}

// fromEntry tolerates an unparsable created_at; the token value is what matters.
func fromEntry(studentID string, e tokenEntry) model.RetakeToken {
	tok := model.RetakeToken{StudentID: studentID, Token: e.Token}
	if ts, err := parseTimestamp(e.CreatedAt); err == nil {
		tok.CreatedAt = ts
	}
	return tok
}
