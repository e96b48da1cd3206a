package model

// SubmissionStatus explains why a terminal submission happened.
// It is informational only; scoring treats every value alike.
type SubmissionStatus string

const (
	StatusOK                  SubmissionStatus = "ok"
	StatusTimeout             SubmissionStatus = "timeout"
	StatusFullscreenViolation SubmissionStatus = "fullscreen_violation"
	StatusTabSwitchTimeout    SubmissionStatus = "tab_switch_timeout"
	StatusMultipleTabSwitch   SubmissionStatus = "multiple_tab_switch"
	StatusWindowBlur          SubmissionStatus = "window_blur"
	StatusTabClosed           SubmissionStatus = "tab_closed"
)

// Valid reports whether s belongs to the controlled vocabulary.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusOK, StatusTimeout, StatusFullscreenViolation, StatusTabSwitchTimeout,
		StatusMultipleTabSwitch, StatusWindowBlur, StatusTabClosed:
		return true
	}
	return false
}

// IsViolation is true for every status other than ok and timeout.
func (s SubmissionStatus) IsViolation() bool {
	return s.Valid() && s != StatusOK && s != StatusTimeout
}
