package articles

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIServer exposes the article query surface over HTTP.
type APIServer struct {
	store *ArticleStore
}

// NewAPIServer creates an article API server backed by store.
func NewAPIServer(store *ArticleStore) *APIServer {
	return &APIServer{store: store}
}

// Register attaches the article routes to a router group.
func (s *APIServer) Register(api *gin.RouterGroup) {
	api.GET("/articles", s.HandleListArticles)
	api.GET("/articles/:id", s.HandleGetArticle)
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

// handleError maps domain errors to HTTP responses.
func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrArticleNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListArticles handles GET /articles. All filters come in as
// query parameters; out-of-range pagination values are clamped by the
// store rather than rejected.
func (s *APIServer) HandleListArticles(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "page must be an integer"))
			return
		}
		page = n
	}

	pageSize := DefaultPageSize
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "pageSize must be an integer"))
			return
		}
		pageSize = n
	}

	filter := Filter{
		Title:     c.Query("title"),
		SortField: c.Query("sortField"),
		SortOrder: c.Query("sortOrder"),
	}

	if raw := c.Query("sourceId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "sourceId must be a UUID"))
			return
		}
		filter.SourceID = &id
	}

	if raw := c.Query("recentDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "recentDays must be a non-negative integer"))
			return
		}
		filter.RecentDays = n
	}

	for param, target := range map[string]**time.Time{
		"publishedAfter":  &filter.PublishedAfter,
		"publishedBefore": &filter.PublishedBefore,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := parseTimeParam(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", param+" must be an RFC 3339 timestamp or YYYY-MM-DD date"))
			return
		}
		*target = &t
	}

	result, err := s.store.QueryPaginated(page, pageSize, filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleGetArticle handles GET /articles/{id}.
func (s *APIServer) HandleGetArticle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid article ID"))
		return
	}

	article, err := s.store.GetArticle(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, article)
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
