package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrLoginRejected      ErrCode = "LOGIN_REJECTED"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrAlreadyAttempted   ErrCode = "ALREADY_ATTEMPTED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrNoActiveSession    ErrCode = "NO_ACTIVE_SESSION"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidStatus  ErrCode = "INVALID_STATUS"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotReady          ErrCode = "QUIZ_NOT_READY"
	ErrQuestionNotAssigned   ErrCode = "QUESTION_NOT_ASSIGNED"
	ErrTimeUp                ErrCode = "TIME_UP"
	ErrSessionFinished       ErrCode = "SESSION_FINISHED"
	ErrConfirmationRequired  ErrCode = "CONFIRMATION_REQUIRED"
	ErrStudentMidAttempt     ErrCode = "STUDENT_MID_ATTEMPT"
	ErrResponsesNotPersisted ErrCode = "RESPONSES_NOT_PERSISTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrLoginRejected:
		return "Login rejected."
	case ErrSessionActive:
		return "You are already logged in on another workstation."
	case ErrAlreadyAttempted:
		return "You have already attempted this quiz."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrNoActiveSession:
		return "No active quiz session."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidStatus:
		return "Unknown submission status."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotReady:
		return "The quiz is not ready yet."
	case ErrQuestionNotAssigned:
		return "This question is not part of your quiz."
	case ErrTimeUp:
		return "Time is up."
	case ErrSessionFinished:
		return "This attempt has already been submitted."
	case ErrConfirmationRequired:
		return "Set confirm=true to grant the retake."
	case ErrStudentMidAttempt:
		return "The student is taking the quiz. Reset the session first."
	case ErrResponsesNotPersisted:
		return "Responses could not be stored."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
