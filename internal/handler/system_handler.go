package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/response"
	"github.com/stemsi/labquiz/internal/service"
)

// SystemHandler reports liveness and process statistics.
type SystemHandler struct {
	sessionService *service.ExamSessionService
	questionCount  int
	startTime      time.Time
}

func NewSystemHandler(sessionService *service.ExamSessionService, questionCount int) *SystemHandler {
	return &SystemHandler{
		sessionService: sessionService,
		questionCount:  questionCount,
		startTime:      time.Now(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type systemStats struct {
	Uptime         string `json:"uptime"`
	Questions      int    `json:"questions"`
	ActiveSessions int    `json:"active_sessions"`
	Goroutines     int    `json:"goroutines"`
	HeapAlloc      uint64 `json:"heap_alloc"`
	NumGC          uint32 `json:"num_gc"`
	GoVersion      string `json:"go_version"`
}

// Stats godoc
// GET /api/v1/admin/system
// Returns runtime statistics of the quiz server.
func (h *SystemHandler) Stats(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	response.Success(c, http.StatusOK, systemStats{
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		Questions:      h.questionCount,
		ActiveSessions: len(h.sessionService.ActiveSessions()),
		Goroutines:     runtime.NumGoroutine(),
		HeapAlloc:      ms.HeapAlloc,
		NumGC:          ms.NumGC,
		GoVersion:      runtime.Version(),
	})
}
