package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"moviequery/internal/model"
	"moviequery/internal/service"

	"github.com/gin-gonic/gin"
)

// Querier answers natural language movie queries
type Querier interface {
	Run(ctx context.Context, raw string) *model.QueryResponse
	RunStream(ctx context.Context, raw string, emit service.EmitFunc) *model.QueryResponse
}

// QueryHandler handles query-related HTTP requests
type QueryHandler struct {
	queryService Querier
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryService Querier) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// Query handles POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	// Failures are reported in the body; the pipeline itself never errors
	c.JSON(http.StatusOK, h.queryService.Run(c.Request.Context(), req.Query))
}

// QueryStream handles POST /api/v1/query/stream - SSE streaming query
func (h *QueryHandler) QueryStream(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"query": req.Query})
	flusher.Flush()

	response := h.queryService.RunStream(c.Request.Context(), req.Query, func(event string, data any) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})

	sendSSE(c, "results", response)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

func bindQuery(c *gin.Context) (*model.QueryRequest, bool) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: query is empty"})
		return nil, false
	}
	return &req, true
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}
