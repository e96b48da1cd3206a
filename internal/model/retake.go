package model

import "time"

// RetakeToken authorizes exactly one further attempt for a student.
type RetakeToken struct {
	StudentID string    `json:"-"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// RetakeRequest is the confirmation payload of the admin retake workflow.
type RetakeRequest struct {
	StudentID string `json:"student_id" form:"student_id" binding:"required,max=64"`
	Confirm   bool   `json:"confirm" form:"confirm"`
}

// RetakePreview is returned by the query phase of the retake workflow. Nothing is mutated.
type RetakePreview struct {
	StudentID     string `json:"student_id"`
	ResponseCount int    `json:"response_count"`
	HasLiveToken  bool   `json:"has_live_token"`
	ActiveSession bool   `json:"active_session"`
	Message       string `json:"message"`
}

// RetakeResult is returned by the confirmation phase.
type RetakeResult struct {
	StudentID   string `json:"student_id"`
	Archived    int    `json:"archived"`
	ArchivePath string `json:"archive_path,omitempty"`
	Token       string `json:"token"`
	Message     string `json:"message"`
}
