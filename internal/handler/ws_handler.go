package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/middleware"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
	ws "github.com/stemsi/labquiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the student integrity stream.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/session/stream?token=...
// Upgrades to WebSocket for autosave, violation reports and submission.
// A violation report ends the attempt with the reported status.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	studentID, sessionID := claims.Subject, claims.ID
	ip := c.ClientIP()

	// Validate the session before streaming; an overdue one is finished here.
	_, result, err := h.sessionService.Resume(ctx, studentID, sessionID)
	if err != nil {
		writeError(conn, err)
		return
	}
	if result != nil {
		h.finish(conn, result)
		return
	}

	wsLog := h.log.With().
		Str("student_id", studentID).
		Str("session_id", sessionID).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

		case ws.ActionAutosave:
			if err := h.sessionService.Autosave(ctx, studentID, sessionID, msg.QuestionID, msg.Option); err != nil {
				if errors.Is(err, service.ErrTimeUp) {
					h.expire(ctx, conn, studentID, sessionID)
					return
				}
				writeError(conn, err)
				if terminal(err) {
					return
				}
				continue
			}
			ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})

		case ws.ActionViolation:
			if !msg.Status.IsViolation() {
				ws.WriteError(conn, string(response.ErrInvalidStatus), "violation requires a violation status")
				continue
			}
			wsLog.Warn().Str("status", string(msg.Status)).Msg("Integrity violation reported")
			if h.submit(ctx, conn, wsLog, studentID, sessionID, ip, msg.Answers, msg.Status) {
				return
			}

		case ws.ActionSubmit:
			status := msg.Status
			if status == "" {
				status = model.StatusOK
			}
			if h.submit(ctx, conn, wsLog, studentID, sessionID, ip, msg.Answers, status) {
				return
			}

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// submit finishes the attempt and reports whether the stream is over.
func (h *WSHandler) submit(
	ctx context.Context,
	conn *websocket.Conn,
	wsLog zerolog.Logger,
	studentID, sessionID, ip string,
	answers map[int]string,
	status model.SubmissionStatus,
) bool {
	result, err := h.sessionService.Submit(ctx, service.SubmitInput{
		StudentID: studentID,
		SessionID: sessionID,
		Answers:   answers,
		Status:    status,
		IP:        ip,
	})
	if err != nil {
		wsLog.Error().Err(err).Msg("Submission over stream failed")
		writeError(conn, err)
		return terminal(err)
	}
	h.finish(conn, result)
	return true
}

// expire lets Resume finish an overdue session and relays the result.
func (h *WSHandler) expire(ctx context.Context, conn *websocket.Conn, studentID, sessionID string) {
	_, result, err := h.sessionService.Resume(ctx, studentID, sessionID)
	if err != nil {
		writeError(conn, err)
		return
	}
	if result != nil {
		h.finish(conn, result)
		return
	}
	writeError(conn, service.ErrTimeUp)
}

func (h *WSHandler) finish(conn *websocket.Conn, result *model.SubmissionResult) {
	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})
	ws.Close(conn, string(result.Outcome))
}

// terminal reports errors after which the session cannot continue.
func terminal(err error) bool {
	return errors.Is(err, service.ErrNoActiveSession) || errors.Is(err, service.ErrSessionInvalidated)
}

// writeError sends the API error code for err.
func writeError(conn *websocket.Conn, err error) {
	_, code := classify(err)
	ws.WriteError(conn, string(code), err.Error())
}
