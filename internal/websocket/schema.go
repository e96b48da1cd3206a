package websocket

import "github.com/stemsi/labquiz/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// Request is every client message. Fields unused by an action are ignored.
type Request struct {
	Action     Action                 `json:"action"`
	QuestionID int                    `json:"question_id,omitempty"`
	Option     string                 `json:"option,omitempty"`
	Answers    map[int]string         `json:"answers,omitempty"`
	Status     model.SubmissionStatus `json:"status,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event      Event `json:"event"`
	QuestionID int   `json:"question_id"`
}

// SubmittedResponse ends the stream; the server closes the connection after it.
type SubmittedResponse struct {
	Event  Event                   `json:"event"`
	Result *model.SubmissionResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
