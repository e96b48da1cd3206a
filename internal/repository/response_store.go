package repository

import (
	"context"

	"github.com/stemsi/labquiz/internal/model"
)

// ResponseStore persists ResponseRecords. Implementations guarantee that Insert's
// duplicate check and append are atomic for a (student_id, question_id) pair.
type ResponseStore interface {
	// Insert appends rec unless a record for the same pair exists, in which case it
	// returns false and leaves the store untouched.
	Insert(ctx context.Context, rec model.ResponseRecord) (bool, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]model.ResponseRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.ResponseRecord, error)
	// DeleteByStudent removes and returns every record of a student.
	DeleteByStudent(ctx context.Context, studentID string) ([]model.ResponseRecord, error)
	// Reset reinitializes the store to its canonical schema.
	Reset(ctx context.Context) error
}
