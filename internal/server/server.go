// Package server exposes the scan service over HTTP. Routes live under
// /api/v1; /metrics serves prometheus and /healthz liveness.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safecheck/safecheck/internal/history"
	"github.com/safecheck/safecheck/internal/safecheck"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// Config holds HTTP server configuration.
type Config struct {
	CORSOrigins  []string
	RateLimitRPS int
	RateBurst    int
}

// Server binds the scan service and repository to HTTP handlers.
type Server struct {
	svc    *safecheck.Service
	repo   history.Repository
	logger *zap.Logger
}

// New creates a Server.
func New(svc *safecheck.Service, repo history.Repository, logger *zap.Logger) *Server {
	return &Server{svc: svc, repo: repo, logger: logger}
}

// Router builds the gin engine with all routes and middleware mounted.
func (s *Server) Router(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(PrometheusMiddleware())

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = cfg.RateLimitRPS * 2
		}
		r.Use(RateLimiter(cfg.RateLimitRPS, burst))
	}

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/scan", s.handleScan)
		api.POST("/rescan", s.handleRescan)
		api.GET("/pipelines", s.handlePipelines)
		api.GET("/scans", s.handleListScans)
		api.GET("/scans/:id", s.handleGetScan)
		api.DELETE("/scans/:id", s.handleDeleteScan)
		api.DELETE("/scans", s.handleDeleteScans)
	}
	return r
}

type scanRequest struct {
	Input string `json:"input" binding:"required"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required", "code": scanerr.CodeInvalidInput})
		return
	}

	resp, err := s.svc.CheckSync(c.Request.Context(), req.Input, safecheck.Options{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRescan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required", "code": scanerr.CodeInvalidInput})
		return
	}

	resp, err := s.svc.Rescan(c.Request.Context(), req.Input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePipelines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pipelines": s.svc.PipelineInfo()})
}

// handleListScans serves paginated history with optional q=, status=,
// and kind= filters. Filters are mutually exclusive with q.
func (s *Server) handleListScans(c *gin.Context) {
	ctx := c.Request.Context()

	if q := c.Query("q"); q != "" {
		results, err := s.repo.SearchScanResults(ctx, q)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scans": results})
		return
	}
	if st := c.Query("status"); st != "" {
		status, ok := scoring.ParseStatus(st)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + st, "code": scanerr.CodeInvalidInput})
			return
		}
		results, err := s.repo.GetScanResultsByStatus(ctx, status)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scans": results})
		return
	}
	if k := c.Query("kind"); k != "" {
		kind, ok := target.KindFromString(k)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + k, "code": scanerr.CodeInvalidInput})
			return
		}
		results, err := s.repo.GetScanResultsByKind(ctx, kind)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scans": results})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	results, err := s.repo.GetScanResults(ctx, limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.repo.GetScanResultCount(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": results, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleGetScan(c *gin.Context) {
	result, err := s.repo.GetScanResultByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found", "code": scanerr.CodeNotFound})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDeleteScan(c *gin.Context) {
	deleted, err := s.repo.DeleteByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found", "code": scanerr.CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

// handleDeleteScans clears history, optionally bounded by older_than
// (RFC 3339 cutoff).
func (s *Server) handleDeleteScans(c *gin.Context) {
	ctx := c.Request.Context()

	if olderThan := c.Query("older_than"); olderThan != "" {
		cutoff, err := time.Parse(time.RFC3339, olderThan)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than must be RFC 3339", "code": scanerr.CodeInvalidInput})
			return
		}
		n, err := s.repo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
		return
	}

	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.repo.GetScanResultCount(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps a coded error to an HTTP status.
func (s *Server) writeError(c *gin.Context, err error) {
	code := scanerr.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case scanerr.CodeInvalidInput:
		status = http.StatusBadRequest
	case scanerr.CodeNotFound:
		status = http.StatusNotFound
	case scanerr.CodeRateLimited:
		status = http.StatusTooManyRequests
	case scanerr.CodeTimeout, scanerr.CodeServiceUnavailable:
		status = http.StatusGatewayTimeout
	}

	s.logger.Warn("request failed", zap.String("code", code), zap.Error(err))

	body := gin.H{"error": err.Error(), "code": code}
	var coded *scanerr.Error
	if errors.As(err, &coded) && len(coded.Details) > 0 {
		body["details"] = coded.Details
	}
	c.JSON(status, body)
}
