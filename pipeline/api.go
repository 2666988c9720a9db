package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jcleroy/newsdex/sources"
)

// APIServer exposes scrape runs and liveness over HTTP.
type APIServer struct {
	orch       *Orchestrator
	runTimeout time.Duration
	started    time.Time
}

// NewAPIServer creates a pipeline API server. runTimeout bounds each
// triggered run; zero means no bound beyond the request context.
func NewAPIServer(orch *Orchestrator, runTimeout time.Duration) *APIServer {
	return &APIServer{
		orch:       orch,
		runTimeout: runTimeout,
		started:    time.Now(),
	}
}

// Register attaches the scrape route to a router group. The health
// route lives at the root, outside the versioned group.
func (s *APIServer) Register(api *gin.RouterGroup) {
	api.POST("/scrape", s.HandleScrape)
}

// RegisterHealth attaches GET /health to the engine root.
func (s *APIServer) RegisterHealth(router *gin.Engine) {
	router.GET("/health", s.HandleHealth)
}

// ScrapeRequest is the body for POST /scrape. Both fields are
// optional: no source_id means scrape everything, uri is extra query
// text appended to each target URL.
type ScrapeRequest struct {
	SourceID *string `json:"source_id,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

// HandleScrape handles POST /scrape. The run executes synchronously
// and the summary is the response body.
func (s *APIServer) HandleScrape(c *gin.Context) {
	var req ScrapeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
			return
		}
	}

	var sourceID *uuid.UUID
	if req.SourceID != nil {
		id, err := uuid.Parse(*req.SourceID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "source_id must be a UUID"))
			return
		}
		sourceID = &id
	}

	ctx := c.Request.Context()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	summary, err := s.orch.Run(ctx, sourceID, req.URI)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// HandleHealth handles GET /health.
func (s *APIServer) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps run errors to HTTP responses.
func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sources.ErrSourceNotFound), errors.Is(err, ErrNoSources):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}
