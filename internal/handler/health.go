package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks that the movie store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthHandler serves liveness and version endpoints
type HealthHandler struct {
	store Pinger
	info  BuildInfo
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, info BuildInfo) *HealthHandler {
	return &HealthHandler{store: store, info: info}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":     "healthy",
		"service":    "moviequery",
		"database":   "ok",
		"version":    h.info.Version,
		"build_time": h.info.BuildTime,
		"git_commit": h.info.GitCommit,
	}
	if err := h.store.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Version handles GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
