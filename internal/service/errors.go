package service

import "errors"

// Session and ledger errors.
var (
	ErrLoginRejected        = errors.New("login rejected")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionInvalidated   = errors.New("session invalidated")
	ErrQuestionNotAssigned  = errors.New("question is not part of this session")
	ErrSessionFinished      = errors.New("session already finished")
	ErrTimeUp               = errors.New("time limit exceeded")
	ErrInvalidStatus        = errors.New("invalid submission status")
	ErrNoData               = errors.New("no responses recorded")
	ErrResponsesSpilled     = errors.New("responses could not be stored and were written to a backup file")
	ErrStudentNotFound      = errors.New("student not found")
	ErrConfirmationRequired = errors.New("retake requires explicit confirmation")
	ErrStudentMidAttempt    = errors.New("student has an active session")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// LoginReason classifies a rejected login.
type LoginReason string

const (
	ReasonEmptyRollNumber      LoginReason = "EMPTY_ROLL_NUMBER"
	ReasonMissingPassword      LoginReason = "MISSING_PASSWORD"
	ReasonInvalidRollNumber    LoginReason = "INVALID_ROLL_NUMBER"
	ReasonIncorrectPassword    LoginReason = "INCORRECT_PASSWORD"
	ReasonSessionActive        LoginReason = "SESSION_ACTIVE"
	ReasonAlreadyAttempted     LoginReason = "ALREADY_ATTEMPTED"
	ReasonInsufficientQuestion LoginReason = "INSUFFICIENT_QUESTIONS"
)

var loginMessages = map[LoginReason]string{
	ReasonEmptyRollNumber:      "Please enter your roll number",
	ReasonMissingPassword:      "Please enter your password",
	ReasonInvalidRollNumber:    "Invalid Roll Number",
	ReasonIncorrectPassword:    "Incorrect Password",
	ReasonSessionActive:        "You are already logged in on another workstation. Contact the administrator.",
	ReasonAlreadyAttempted:     "You have already attempted this quiz. Contact the administrator for a retake.",
	ReasonInsufficientQuestion: "The quiz is not ready yet. Contact the administrator.",
}

// LoginError is a login rejection with a human-readable reason.
type LoginError struct {
	Reason  LoginReason
	Message string
}

func newLoginError(reason LoginReason) *LoginError {
	return &LoginError{Reason: reason, Message: loginMessages[reason]}
}

func (e *LoginError) Error() string { return e.Message }

// Unwrap lets callers match any rejection with errors.Is(err, ErrLoginRejected).
func (e *LoginError) Unwrap() error { return ErrLoginRejected }

// RejectionReason extracts the LoginReason from err, if any.
func RejectionReason(err error) (LoginReason, bool) {
	var le *LoginError
	if errors.As(err, &le) {
		return le.Reason, true
	}
	return "", false
}
