// Package server exposes the retrieval pipeline over HTTP.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"worldbook/internal/config"
	"worldbook/internal/domain"
	"worldbook/internal/service"
)

// Server wires the gin router to the retrieval orchestrator.
type Server struct {
	service *service.Retrieval
	cfg     *config.Holder
	logger  *logrus.Logger
}

func New(svc *service.Retrieval, cfg *config.Holder, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{service: svc, cfg: cfg, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/worldbook/ingest", s.handleIngest)
	api.POST("/search", s.handleSearch)
	api.POST("/records/delete", s.handleDeleteRecords)
	api.DELETE("/collections/:name", s.handleDeleteCollection)
	api.POST("/config/reload", s.handleReloadConfig)
	return r
}

type ingestRequest struct {
	Entries     map[string]domain.Entry `json:"entries"`
	Collection  string                  `json:"collection"`
	Provider    string                  `json:"provider"`
	ChunkSize   int                     `json:"chunk_size"`
	OverlapSize *int                    `json:"overlap_size"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Entries == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "world book document missing entries mapping"})
		return
	}
	overlap := -1
	if req.OverlapSize != nil {
		overlap = *req.OverlapSize
	}
	stats, err := s.service.Ingest(c.Request.Context(), domain.WorldBook{Entries: req.Entries}, service.IngestOptions{
		Collection:   req.Collection,
		Provider:     req.Provider,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: overlap,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	Collection string `json:"collection"`
	Provider   string `json:"provider"`
	Limit      int    `json:"limit"`
	Rerank     bool   `json:"rerank"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := s.service.Query(c.Request.Context(), service.QueryOptions{
		Query:      req.Query,
		Collection: req.Collection,
		Provider:   req.Provider,
		Limit:      req.Limit,
		Rerank:     req.Rerank,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if results == nil {
		results = []domain.SearchCandidate{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type deleteRecordsRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids" binding:"required"`
}

func (s *Server) handleDeleteRecords(c *gin.Context) {
	var req deleteRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.service.DeleteRecords(c.Request.Context(), req.Collection, req.IDs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
}

func (s *Server) handleDeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if err := s.service.DeleteCollection(c.Request.Context(), name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

func (s *Server) handleReloadConfig(c *gin.Context) {
	if _, err := s.cfg.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

// fail maps pipeline errors onto HTTP statuses: client mistakes are 400s,
// an unknown collection is 404, everything a backing service broke is 502.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var serr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrInvalidChunking), errors.Is(err, domain.ErrUnknownProvider):
		status = http.StatusBadRequest
	case errors.As(err, &serr):
		if serr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadGateway
		}
	default:
		var perr *domain.ProviderError
		var rerr *domain.RerankError
		if errors.As(err, &perr) || errors.As(err, &rerr) || errors.Is(err, domain.ErrUnexpectedResponse) {
			status = http.StatusBadGateway
		}
	}
	s.logger.WithError(err).WithField("status", status).Warn("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request handled")
	}
}
