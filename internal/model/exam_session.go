package model

import "time"

// SessionOutcome enumerates terminal states of an attempt.
type SessionOutcome string

const (
	OutcomeScored           SessionOutcome = "SCORED"
	OutcomeAlreadySubmitted SessionOutcome = "ALREADY_SUBMITTED"
)

// SessionView is the student-facing snapshot of an Active session.
type SessionView struct {
	SessionID        string               `json:"session_id"`
	StudentID        string               `json:"student_id"`
	StartedAt        time.Time            `json:"started_at"`
	Deadline         time.Time            `json:"deadline"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	Questions        []QuestionForStudent `json:"questions"`
	Answers          map[int]string       `json:"answers"`
}

// ActiveSessionInfo is the admin-facing view of a registry entry.
type ActiveSessionInfo struct {
	StudentID string    `json:"student_id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
	IP        string    `json:"ip"`
	Answered  int       `json:"answered"`
}

// SubmissionResult is the terminal response of an attempt.
// Score is nil when the ledger holds no data for the student.
type SubmissionResult struct {
	StudentID string           `json:"student_id"`
	Outcome   SessionOutcome   `json:"outcome"`
	Status    SubmissionStatus `json:"status,omitempty"`
	Score     *Score           `json:"score,omitempty"`
	Message   string           `json:"message"`
}

// SubmitRequest carries the final answers, keyed by question id.
type SubmitRequest struct {
	Answers map[int]string   `json:"answers"`
	Status  SubmissionStatus `json:"status" binding:"omitempty,submission_status"`
}

// AutosaveRequest stores the current selection for one assigned question.
type AutosaveRequest struct {
	QuestionID int    `json:"question_id" binding:"required"`
	Option     string `json:"option" binding:"max=500"`
}
