package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/labquiz/internal/model"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// responsesSchema mirrors migrations/000001_create_responses.up.sql so Reset can
// restore the table without the migrate tool.
const responsesSchema = `
CREATE TABLE IF NOT EXISTS responses (
    id              BIGSERIAL PRIMARY KEY,
    student_id      VARCHAR(64)  NOT NULL,
    question_id     INTEGER      NOT NULL,
    selected_option TEXT         NOT NULL,
    correct_option  TEXT         NOT NULL,
    is_correct      BOOLEAN      NOT NULL,
    submitted_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
    ip              VARCHAR(64)  NOT NULL DEFAULT '',
    workstation     VARCHAR(64)  NOT NULL DEFAULT 'Unknown',
    status          VARCHAR(32)  NOT NULL DEFAULT 'ok',
    CONSTRAINT responses_student_question_key UNIQUE (student_id, question_id)
);
CREATE INDEX IF NOT EXISTS idx_responses_student_id ON responses (student_id);`

const responseColumnsSQL = `student_id, question_id, selected_option, correct_option, is_correct, submitted_at, ip, workstation, status`

// PostgresResponseStore keeps the response ledger in the responses table.
// The unique constraint on (student_id, question_id) provides the duplicate guard.
type PostgresResponseStore struct {
	pool *pgxpool.Pool
}

// NewPostgresResponseStore creates a new PostgresResponseStore.
func NewPostgresResponseStore(pool *pgxpool.Pool) *PostgresResponseStore {
	return &PostgresResponseStore{pool: pool}
}

// Insert adds rec, or reports false when the pair already exists.
func (s *PostgresResponseStore) Insert(ctx context.Context, rec model.ResponseRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO responses (`+responseColumnsSQL+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (student_id, question_id) DO NOTHING`,
		rec.StudentID, rec.QuestionID, rec.SelectedOption, rec.CorrectOption, rec.IsCorrect,
		rec.Timestamp, rec.IP, rec.Workstation, string(rec.Status),
	)
	if err != nil {
		return false, translatePgError("insert response", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns every record in insertion order.
func (s *PostgresResponseStore) List(ctx context.Context) ([]model.ResponseRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+responseColumnsSQL+` FROM responses ORDER BY id`)
	if err != nil {
		return nil, translatePgError("list responses", err)
	}
	return collectRecords(rows)
}

// ListByStudent returns one student's records in insertion order.
func (s *PostgresResponseStore) ListByStudent(ctx context.Context, studentID string) ([]model.ResponseRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+responseColumnsSQL+` FROM responses WHERE student_id = $1 ORDER BY id`, studentID)
	if err != nil {
		return nil, translatePgError("list student responses", err)
	}
	return collectRecords(rows)
}

// DeleteByStudent removes a student's records and returns them.
func (s *PostgresResponseStore) DeleteByStudent(ctx context.Context, studentID string) ([]model.ResponseRecord, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM responses WHERE student_id = $1 RETURNING `+responseColumnsSQL, studentID)
	if err != nil {
		return nil, translatePgError("delete student responses", err)
	}
	return collectRecords(rows)
}

// Reset recreates the responses table if it is missing. Existing rows are kept.
func (s *PostgresResponseStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, responsesSchema); err != nil {
		return fmt.Errorf("recreate responses table: %w", err)
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]model.ResponseRecord, error) {
	defer rows.Close()

	var records []model.ResponseRecord
	for rows.Next() {
		var r model.ResponseRecord
		var status string
		if err := rows.Scan(&r.StudentID, &r.QuestionID, &r.SelectedOption, &r.CorrectOption,
			&r.IsCorrect, &r.Timestamp, &r.IP, &r.Workstation, &status); err != nil {
			return nil, err
		}
		r.Status = model.SubmissionStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError("scan responses", err)
	}
	return records, nil
}

// translatePgError maps a missing table to ErrStoreCorrupt so the ledger can recover.
func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: %w: %s", op, ErrStoreCorrupt, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
