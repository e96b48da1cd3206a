package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/response"
)

// MediaHandler serves question images from a flat directory.
type MediaHandler struct {
	imagesDir string
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(imagesDir string) *MediaHandler {
	return &MediaHandler{imagesDir: imagesDir}
}

// ServeImage godoc
// GET /images/:filename
// Serves a question image. Names containing path separators or ".." are rejected.
func (h *MediaHandler) ServeImage(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	path := filepath.Join(h.imagesDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	c.File(path)
}
