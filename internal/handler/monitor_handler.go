package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/service"
)

const (
	refreshInterval   = 5 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// MonitorHandler streams live session and result counts to the admin.
type MonitorHandler struct {
	adminService   *service.AdminService
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

func NewMonitorHandler(adminService *service.AdminService, sessionService *service.ExamSessionService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		adminService:   adminService,
		sessionService: sessionService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

type monitorSnapshot struct {
	Type       string                    `json:"type"`
	Timestamp  int64                     `json:"timestamp"`
	Active     []model.ActiveSessionInfo `json:"active"`
	Submitted  int                       `json:"submitted"`
	Violations int                       `json:"violations"`
}

// MonitorSSE godoc
// GET /api/v1/admin/monitor
// Streams a snapshot of Active sessions and submission counts via SSE.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.sendSnapshot(c, reqCtx)
	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes one snapshot event. A slow store skips the tick.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap := monitorSnapshot{
		Type:      "snapshot",
		Timestamp: time.Now().Unix(),
		Active:    h.sessionService.ActiveSessions(),
	}
	summaries, err := h.adminService.Results(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch results for monitor")
		return
	}
	snap.Submitted = len(summaries)
	for _, s := range summaries {
		if s.Status.IsViolation() {
			snap.Violations++
		}
	}

	c.SSEvent("message", snap)
	c.Writer.Flush()
}
