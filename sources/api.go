package sources

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIServer exposes source and selector config management over HTTP.
type APIServer struct {
	store *SourceStore
}

// NewAPIServer creates a source API server backed by store.
func NewAPIServer(store *SourceStore) *APIServer {
	return &APIServer{store: store}
}

// Register attaches the source routes to a router group.
func (s *APIServer) Register(api *gin.RouterGroup) {
	api.GET("/sources", s.HandleListSources)
	api.GET("/sources/:id", s.HandleGetSource)
	api.POST("/sources", s.HandleCreateSource)
	api.PUT("/sources/:id", s.HandleUpdateSource)
	api.DELETE("/sources/:id", s.HandleDeleteSource)
	api.GET("/sources/:id/tags", s.HandleListTags)
	api.POST("/sources/:id/tags", s.HandleCreateTag)
	api.DELETE("/sources/:id/tags/:tagId", s.HandleDeleteTag)
}

// ListSourcesResponse is the body for GET /sources.
type ListSourcesResponse struct {
	Sources []Source `json:"sources"`
	Total   int      `json:"total"`
}

// CreateSourceRequest is the body for POST /sources.
type CreateSourceRequest struct {
	Title        string `json:"title" binding:"required"`
	TargetURL    string `json:"target_url" binding:"required"`
	SourceType   string `json:"source_type" binding:"required"`
	ListSelector string `json:"list_selector"`
}

// UpdateSourceRequest is the body for PUT /sources/{id}.
type UpdateSourceRequest struct {
	Title        *string `json:"title,omitempty"`
	TargetURL    *string `json:"target_url,omitempty"`
	ListSelector *string `json:"list_selector,omitempty"`
}

// CreateTagRequest is the body for POST /sources/{id}/tags.
type CreateTagRequest struct {
	FieldName   string `json:"field_name" binding:"required"`
	TagName     string `json:"tag_name" binding:"required"`
	ClassName   string `json:"class_name"`
	NextSibling bool   `json:"next_sibling"`
}

// ListTagsResponse is the body for GET /sources/{id}/tags.
type ListTagsResponse struct {
	Tags  []FieldTagConfig `json:"tags"`
	Total int              `json:"total"`
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
	case errors.Is(err, ErrSourceNotFound), errors.Is(err, ErrTagNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrDuplicateURL), errors.Is(err, ErrDuplicateField):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, ErrInvalidSourceType):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListSources handles GET /sources.
func (s *APIServer) HandleListSources(c *gin.Context) {
	all, err := s.store.ListSources()
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: all,
		Total:   len(all),
	})
}

// HandleGetSource handles GET /sources/{id}.
func (s *APIServer) HandleGetSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleCreateSource handles POST /sources.
func (s *APIServer) HandleCreateSource(c *gin.Context) {
	var req CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	// Fail fast on the type before touching the store.
	if err := ValidateSourceType(req.SourceType); err != nil {
		s.handleError(c, err)
		return
	}

	if req.SourceType == "website" && req.ListSelector == "" {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "list_selector is required for website sources"))
		return
	}

	source, err := s.store.CreateSource(req.Title, req.TargetURL, req.SourceType, req.ListSelector)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, source)
}

// HandleUpdateSource handles PUT /sources/{id}.
func (s *APIServer) HandleUpdateSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	update := SourceUpdate{
		Title:        req.Title,
		TargetURL:    req.TargetURL,
		ListSelector: req.ListSelector,
	}
	if err := s.store.UpdateSource(sourceID, update); err != nil {
		s.handleError(c, err)
		return
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleDeleteSource handles DELETE /sources/{id}.
func (s *APIServer) HandleDeleteSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	if err := s.store.DeleteSource(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleListTags handles GET /sources/{id}/tags.
func (s *APIServer) HandleListTags(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	// Confirm the source exists so a bad ID is a 404, not an empty list.
	if _, err := s.store.GetSource(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	tags, err := s.store.TagsForSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListTagsResponse{
		Tags:  tags,
		Total: len(tags),
	})
}

// HandleCreateTag handles POST /sources/{id}/tags.
func (s *APIServer) HandleCreateTag(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	tag, err := s.store.CreateTagConfig(sourceID, req.FieldName, req.TagName, req.ClassName, req.NextSibling)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tag)
}

// HandleDeleteTag handles DELETE /sources/{id}/tags/{tagId}.
func (s *APIServer) HandleDeleteTag(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	tagID, err := strconv.ParseInt(c.Param("tagId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid tag ID"))
		return
	}

	if err := s.store.DeleteTagConfig(tagID); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
