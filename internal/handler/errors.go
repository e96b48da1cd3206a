package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
)

// serviceErrors maps service sentinels to their status and code. Order matters
// only for errors that wrap more than one sentinel.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	{service.ErrSessionInvalidated, http.StatusUnauthorized, response.ErrSessionInvalidated},
	{service.ErrQuestionNotAssigned, http.StatusBadRequest, response.ErrQuestionNotAssigned},
	{service.ErrSessionFinished, http.StatusConflict, response.ErrSessionFinished},
	{service.ErrTimeUp, http.StatusConflict, response.ErrTimeUp},
	{service.ErrInvalidStatus, http.StatusBadRequest, response.ErrInvalidStatus},
	{service.ErrStudentNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrConfirmationRequired, http.StatusBadRequest, response.ErrConfirmationRequired},
	{service.ErrStudentMidAttempt, http.StatusConflict, response.ErrStudentMidAttempt},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrResponsesSpilled, http.StatusInternalServerError, response.ErrResponsesNotPersisted},
}

// classify returns the status and code for err, defaulting to an internal error.
func classify(err error) (int, response.ErrCode) {
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failService writes the envelope for a service error.
func failService(c *gin.Context, err error) {
	if reason, ok := service.RejectionReason(err); ok {
		failLogin(c, reason, err.Error())
		return
	}

	status, code := classify(err)
	if code == response.ErrInternal {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

// failLogin keeps the human-readable rejection reason in the message.
func failLogin(c *gin.Context, reason service.LoginReason, message string) {
	switch reason {
	case service.ReasonSessionActive:
		response.FailWithMessage(c, http.StatusConflict, response.ErrSessionActive, message)
	case service.ReasonAlreadyAttempted:
		response.FailWithMessage(c, http.StatusForbidden, response.ErrAlreadyAttempted, message)
	case service.ReasonInsufficientQuestion:
		response.FailWithMessage(c, http.StatusServiceUnavailable, response.ErrQuizNotReady, message)
	case service.ReasonEmptyRollNumber, service.ReasonMissingPassword:
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrLoginRejected, message)
	default:
		response.FailWithMessage(c, http.StatusUnauthorized, response.ErrLoginRejected, message)
	}
}
