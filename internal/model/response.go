package model

import "time"

// NoAnswer is recorded for assigned questions the student left unanswered.
const NoAnswer = "NO_ANSWER"

// UnknownWorkstation labels an IP missing from the workstation map.
const UnknownWorkstation = "Unknown"

// ResponseColumns is the fixed column order of the persisted response store.
var ResponseColumns = []string{
	"student_id",
	"question_id",
	"selected_option",
	"correct_option",
	"is_correct",
	"timestamp",
	"ip",
	"workstation",
	"status",
}

// TimestampLayout is the layout used for ResponseRecord.Timestamp in tabular artifacts.
const TimestampLayout = "2006-01-02 15:04:05"

// ResponseRecord is one answered (or unanswered) question of a terminal submission.
// At most one record exists per (StudentID, QuestionID).
type ResponseRecord struct {
	StudentID      string           `json:"student_id"`
	QuestionID     int              `json:"question_id"`
	SelectedOption string           `json:"selected_option"`
	CorrectOption  string           `json:"correct_option"`
	IsCorrect      bool             `json:"is_correct"`
	Timestamp      time.Time        `json:"timestamp"`
	IP             string           `json:"ip"`
	Workstation    string           `json:"workstation"`
	Status         SubmissionStatus `json:"status"`
}

// Score is the aggregate of a student's records.
type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// StudentSummary is one row of the admin results overview.
type StudentSummary struct {
	StudentID   string           `json:"student_id"`
	Score       Score            `json:"score"`
	Workstation string           `json:"workstation"`
	Status      SubmissionStatus `json:"status"`
	IP          string           `json:"ip"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// MarksheetRow is one row of the derived marksheet artifact.
type MarksheetRow struct {
	StudentID   string           `json:"student_id"`
	TotalScore  int              `json:"total_score"`
	Workstation string           `json:"workstation"`
	Status      SubmissionStatus `json:"status"`
}

// ReviewedResponse decorates a record with the question text for admin review.
type ReviewedResponse struct {
	ResponseRecord
	QuestionText string `json:"question_text"`
}
