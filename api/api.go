// Package api serves a read-only HTTP view of the archive index and its
// packed units.
package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsarchive/archive"
	"github.com/pevans/newsarchive/logger"
	"github.com/pevans/newsarchive/store"
)

// ErrNotArchived is returned when an entry is known but has no unit yet.
var ErrNotArchived = errors.New("entry has not been archived yet")

// maxLimit caps the page size of list endpoints.
const maxLimit = 1000

// Server is the HTTP API over one index and one archive.
type Server struct {
	index   *store.Index
	archive *archive.Writer
	log     *logger.Logger
}

// NewServer creates an API server.
func NewServer(index *store.Index, archive *archive.Writer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		index:   index,
		archive: archive,
		log:     log,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/sources", s.HandleListSources)
	api.GET("/sources/:source/entries", s.HandleListEntries)
	api.GET("/sources/:source/entries/:id", s.HandleGetEntry)
	api.GET("/sources/:source/entries/:id/archive", s.HandleDownloadArchive)
	api.GET("/sources/:source/units", s.HandleListUnits)
	api.GET("/sources/:source/runs", s.HandleListRuns)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("Request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []store.SourceSummary `json:"sources"`
	Total   int                   `json:"total"`
}

// ListEntriesResponse represents the response for GET
// /api/v1/sources/{source}/entries. Total counts every entry matching the
// filter, not just the returned page.
type ListEntriesResponse struct {
	Entries []store.Entry `json:"entries"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// ListUnitsResponse represents the response for GET
// /api/v1/sources/{source}/units.
type ListUnitsResponse struct {
	Units  []archive.Metadata `json:"units"`
	Errors []UnitError        `json:"errors,omitempty"`
	Total  int                `json:"total"`
}

// UnitError names a unit that could not be read.
type UnitError struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// ListRunsResponse represents the response for GET
// /api/v1/sources/{source}/runs.
type ListRunsResponse struct {
	Runs  []store.Run `json:"runs"`
	Total int         `json:"total"`
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
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSourceNotFound),
		errors.Is(err, store.ErrEntryNotFound),
		errors.Is(err, archive.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrNotArchived):
		c.JSON(http.StatusConflict, errorResponse("not_archived", err.Error()))
	default:
		s.log.Error("Request failed", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// queryInt parses a non-negative integer query parameter.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid "+name+" parameter"))
		return 0, false
	}
	return n, true
}

// HandleListSources handles GET /api/v1/sources.
func (s *Server) HandleListSources(c *gin.Context) {
	sources, err := s.index.Sources()
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: sources,
		Total:   len(sources),
	})
}

// HandleListEntries handles GET /api/v1/sources/{source}/entries.
func (s *Server) HandleListEntries(c *gin.Context) {
	filter := store.EntryFilter{}

	if parsedParam := c.Query("parsed"); parsedParam != "" {
		parsed, err := strconv.ParseBool(parsedParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid parsed parameter"))
			return
		}
		filter.Parsed = &parsed
	}

	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	filter.Limit = min(limit, maxLimit)
	filter.Offset = offset

	source := c.Param("source")
	entries, err := s.index.ListEntries(source, filter)
	if err != nil {
		s.handleError(c, err)
		return
	}
	total, err := s.index.CountEntries(source, filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListEntriesResponse{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// HandleGetEntry handles GET /api/v1/sources/{source}/entries/{id}.
func (s *Server) HandleGetEntry(c *gin.Context) {
	entry, err := s.index.GetEntry(c.Param("source"), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// HandleDownloadArchive handles GET
// /api/v1/sources/{source}/entries/{id}/archive and streams the entry's zip.
func (s *Server) HandleDownloadArchive(c *gin.Context) {
	source, id := c.Param("source"), c.Param("id")

	entry, err := s.index.GetEntry(source, id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if !entry.Parsed {
		s.handleError(c, ErrNotArchived)
		return
	}

	path, err := s.archive.Open(source, id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

// HandleListUnits handles GET /api/v1/sources/{source}/units.
func (s *Server) HandleListUnits(c *gin.Context) {
	source := c.Param("source")
	if err := store.ValidateSourceName(source); err != nil {
		s.handleError(c, store.ErrSourceNotFound)
		return
	}

	result, err := s.archive.List(source)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := ListUnitsResponse{
		Units: result.Units,
		Total: len(result.Units),
	}
	if resp.Units == nil {
		resp.Units = []archive.Metadata{}
	}
	for _, readErr := range result.Errors {
		resp.Errors = append(resp.Errors, UnitError{
			Filename: readErr.Filename,
			Message:  readErr.Err.Error(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListRuns handles GET /api/v1/sources/{source}/runs.
func (s *Server) HandleListRuns(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	runs, err := s.index.ListRuns(c.Param("source"), limit)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:  runs,
		Total: len(runs),
	})
}
