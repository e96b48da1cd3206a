package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/middleware"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/stemsi/labquiz/internal/validator"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminHandler handles result review, retakes and session administration.
type AdminHandler struct {
	adminService   *service.AdminService
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService *service.AdminService, sessionService *service.ExamSessionService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		sessionService: sessionService,
		log:            log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/v1/admin/results
// Returns the per-student score overview.
func (h *AdminHandler) ListResults(c *gin.Context) {
	summaries, err := h.adminService.Results(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if summaries == nil {
		summaries = []model.StudentSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"students": summaries})
}

// ListResponses godoc
// GET /api/v1/admin/responses?format=json|csv|xlsx
// Returns every recorded response, optionally as a download.
func (h *AdminHandler) ListResponses(c *gin.Context) {
	records, err := h.adminService.AllResponses(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		h.download(c, "responses.csv", mimeCSV, func(w io.Writer) error {
			return repository.WriteResponsesCSV(w, records)
		})
	case "xlsx":
		h.download(c, "responses.xlsx", mimeXLSX, func(w io.Writer) error {
			return repository.WriteResponsesXLSX(w, records)
		})
	case "json":
		if records == nil {
			records = []model.ResponseRecord{}
		}
		response.Success(c, http.StatusOK, gin.H{"responses": records})
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"format": "format must be one of json, csv, xlsx"})
	}
}

// GetStudentResponses godoc
// GET /api/v1/admin/students/:student_id/responses
// Returns one student's responses with question text and score.
func (h *AdminHandler) GetStudentResponses(c *gin.Context) {
	studentID := c.Param("student_id")
	responses, score, err := h.adminService.StudentResponses(c.Request.Context(), studentID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"student_id": responses[0].StudentID,
		"score":      score,
		"responses":  responses,
	})
}

// PreviewRetake godoc
// GET /api/v1/admin/retakes/:student_id
// Query phase of the retake workflow. Nothing is changed.
func (h *AdminHandler) PreviewRetake(c *gin.Context) {
	preview, err := h.adminService.PreviewRetake(c.Request.Context(), c.Param("student_id"))
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, preview)
}

// ConfirmRetake godoc
// POST /api/v1/admin/retakes
// Confirmation phase: archives and removes the student's responses, refreshes
// the marksheet and issues a retake token. Requires confirm=true.
func (h *AdminHandler) ConfirmRetake(c *gin.Context) {
	var req model.RetakeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.adminService.ConfirmRetake(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}

	admin := ""
	if claims := middleware.GetClaims(c); claims != nil {
		admin = claims.Subject
	}
	h.log.Info().
		Str("admin", admin).
		Str("student_id", result.StudentID).
		Int("archived", result.Archived).
		Msg("Retake confirmed")

	response.Success(c, http.StatusOK, result)
}

// DownloadMarksheet godoc
// GET /api/v1/admin/marksheet?format=csv|xlsx
// Streams the current marksheet.
func (h *AdminHandler) DownloadMarksheet(c *gin.Context) {
	rows, err := h.adminService.Marksheet(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		h.download(c, "marksheet.csv", mimeCSV, func(w io.Writer) error {
			return repository.WriteMarksheetCSV(w, rows)
		})
	case "xlsx":
		h.download(c, "marksheet.xlsx", mimeXLSX, func(w io.Writer) error {
			return repository.WriteMarksheetXLSX(w, rows)
		})
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"format": "format must be csv or xlsx"})
	}
}

// ListSessions godoc
// GET /api/v1/admin/sessions
// Returns every Active session.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"sessions": h.sessionService.ActiveSessions()})
}

// ResetSession godoc
// POST /api/v1/admin/sessions/:student_id/reset
// Removes a student's Active session without recording responses.
func (h *AdminHandler) ResetSession(c *gin.Context) {
	studentID := c.Param("student_id")
	if err := h.sessionService.ResetSession(c.Request.Context(), studentID); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student_id": studentID})
}

// download renders into memory before any header is written.
func (h *AdminHandler) download(c *gin.Context, name, contentType string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.log.Error().Err(err).Str("file", name).Msg("Failed to render download")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	stamped := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), name)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, stamped))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
