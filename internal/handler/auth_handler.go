package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/middleware"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/stemsi/labquiz/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.ExamSessionService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, sessionService *service.ExamSessionService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Validates the roll number (and password when enabled), opens a session and
// returns the session token with the assigned questions.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Login(c.Request.Context(), service.LoginInput{
		RollNumber: req.RollNumber,
		Password:   req.Password,
		IP:         c.ClientIP(),
	})
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// StudentLogout godoc
// POST /api/v1/auth/student/logout
// Ends the current session without recording responses.
func (h *AuthHandler) StudentLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	err := h.sessionService.Logout(c.Request.Context(), claims.Subject, claims.ID)
	if err != nil && !errors.Is(err, service.ErrNoActiveSession) {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Validates the configured admin credentials and returns an admin token.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, err := h.authService.AdminLogin(req.Username, req.Password)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":    token,
		"username": req.Username,
	})
}
