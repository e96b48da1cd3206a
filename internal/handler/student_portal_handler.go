package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/middleware"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/stemsi/labquiz/internal/validator"
)

// maxSubmitBody caps submission bodies, beacons included.
const maxSubmitBody = 64 << 10

// StudentPortalHandler handles the student's quiz session.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessionService *service.ExamSessionService) *StudentPortalHandler {
	return &StudentPortalHandler{sessionService: sessionService}
}

// GetSession godoc
// GET /api/v1/student/session
// Returns the live session (questions, autosaved answers, remaining time).
// Covers page reloads. A finished attempt returns the submission result instead.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, result, err := h.sessionService.Resume(c.Request.Context(), claims.Subject, claims.ID)
	if err != nil {
		failService(c, err)
		return
	}
	if result != nil {
		response.Success(c, http.StatusOK, gin.H{"result": result})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// SaveAnswer godoc
// PUT /api/v1/student/session/answers
// Autosaves the current selection for one assigned question.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AutosaveRequest
	if fields := validator.BindJSON(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Autosave(c.Request.Context(), claims.Subject, claims.ID, req.QuestionID, req.Option); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID})
}

// Submit godoc
// POST /api/v1/student/session/submit
// Records the attempt and returns the score. Accepts a JSON body or form fields
// q<question_id>=<option> plus status, as sent by navigator.sendBeacon on tab close.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	req, fields := bindSubmission(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), service.SubmitInput{
		StudentID: claims.Subject,
		SessionID: claims.ID,
		Answers:   req.Answers,
		Status:    req.Status,
		IP:        c.ClientIP(),
	})
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// bindSubmission reads a SubmitRequest from JSON or form-encoded bodies.
// A status query parameter fills in a missing status.
func bindSubmission(c *gin.Context) (model.SubmitRequest, map[string]string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmitBody)

	var req model.SubmitRequest
	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxSubmitBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, map[string]string{"detail": err.Error()}
		}
		req.Answers = make(map[int]string)
		for key, values := range c.Request.PostForm {
			if len(values) == 0 {
				continue
			}
			if key == "status" {
				req.Status = model.SubmissionStatus(strings.TrimSpace(values[0]))
				continue
			}
			id, err := strconv.Atoi(strings.TrimPrefix(key, "q"))
			if !strings.HasPrefix(key, "q") || err != nil {
				continue
			}
			req.Answers[id] = values[0]
		}
	default:
		if c.Request.ContentLength != 0 {
			if fields := validator.BindJSON(c, &req); fields != nil {
				return req, fields
			}
		}
	}

	if req.Status == "" {
		req.Status = model.SubmissionStatus(c.Query("status"))
	}
	return req, nil
}
