package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/database"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/pipeline"
	"github.com/nao1215/pageaudit/internal/report"
	"github.com/nao1215/pageaudit/internal/stats"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Error  string `json:"error"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type auditRequest struct {
	URL string `json:"url" binding:"required"`
}

// batchRequest accepts either plain URLs or full targets.
type batchRequest struct {
	URLs    []string            `json:"urls"`
	Targets []model.BatchTarget `json:"targets"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createAudit(c *gin.Context) {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must be {\"url\": \"...\"}"})
		return
	}

	audit, err := s.auditor.Audit(c.Request.Context(), req.URL)
	if err != nil {
		s.logger.Warn("audit request failed", "url", req.URL, "error", err)
		c.JSON(auditErrorStatus(err), auditErrorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, audit)
}

// auditErrorStatus maps an audit failure to an HTTP status.
func auditErrorStatus(err error) int {
	if reason, ok := fetcher.ReasonOf(err); ok {
		if reason == fetcher.ReasonInvalidURL {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}
	if pipeline.IsCancelled(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func auditErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error(), Stage: pipeline.StageOf(err)}
	if reason, ok := fetcher.ReasonOf(err); ok {
		resp.Reason = reason.String()
	}
	return resp
}

func (s *Server) listAudits(c *gin.Context) {
	limit, ok := s.queryLimit(c, s.historyLimit)
	if !ok {
		return
	}

	audits, err := s.records(c, limit)
	if err != nil {
		s.internalError(c, "failed to list audits", err)
		return
	}

	c.JSON(http.StatusOK, report.NewHistoryReport(audits))
}

func (s *Server) getAudit(c *gin.Context) {
	audit, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "audit not found"})
		return
	}
	if err != nil {
		s.internalError(c, "failed to get audit", err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (s *Server) deleteAudit(c *gin.Context) {
	err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "audit not found"})
		return
	}
	if err != nil {
		s.internalError(c, "failed to delete audit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stats(c *gin.Context) {
	limit, ok := s.queryLimit(c, s.statsWindow)
	if !ok {
		return
	}

	audits, err := s.records(c, limit)
	if err != nil {
		s.internalError(c, "failed to load audits", err)
		return
	}

	c.JSON(http.StatusOK, s.aggregator.Compute(audits))
}

func (s *Server) compare(c *gin.Context) {
	pageURL := queryURL(c)
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "url query parameter is required"})
		return
	}

	audits, err := s.store.ListByURL(c.Request.Context(), pageURL, 2)
	if err != nil {
		s.internalError(c, "failed to load audits", err)
		return
	}
	if len(audits) < 2 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "at least two audits of this url are needed"})
		return
	}

	c.JSON(http.StatusOK, stats.Compare(audits[1], audits[0]))
}

func (s *Server) submitBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must contain urls or targets"})
		return
	}

	targets := append(req.Targets, batch.TargetsFromURLs(req.URLs)...)

	run, err := s.batches.Submit(c.Request.Context(), targets)
	switch {
	case errors.Is(err, batch.ErrNoTargets):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, batch.ErrBatchInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.internalError(c, "failed to start batch", err)
		return
	}

	s.logger.Info("batch submitted", "targets", len(targets))
	c.JSON(http.StatusAccepted, run.Snapshot())
}

func (s *Server) batchSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.batches.Snapshot())
}

// batchEvents streams a snapshot after every state change of the current
// batch until it reaches a terminal state or the client goes away.
func (s *Server) batchEvents(c *gin.Context) {
	run, ok := s.batches.Current()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: batch.ErrNoActiveBatch.Error()})
		return
	}

	events := run.Subscribe()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(_ io.Writer) bool {
		select {
		case snap, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(snap.State.String(), snap)
			return !snap.State.IsTerminal()
		case <-c.Request.Context().Done():
			return false
		case <-s.closing:
			return false
		}
	})
}

func (s *Server) cancelBatch(c *gin.Context) {
	if err := s.batches.Cancel(); err != nil {
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.batches.Snapshot())
}

func (s *Server) resetBatch(c *gin.Context) {
	if err := s.batches.Reset(); err != nil {
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.batches.Snapshot())
}

// records lists stored audits, filtered by the optional url query.
func (s *Server) records(c *gin.Context, limit int) ([]*model.PageAudit, error) {
	if pageURL := queryURL(c); pageURL != "" {
		return s.store.ListByURL(c.Request.Context(), pageURL, limit)
	}
	return s.store.List(c.Request.Context(), limit)
}

// queryURL returns ?url= normalized the way audits store it. A value that
// does not normalize is used as given and simply matches nothing.
func queryURL(c *gin.Context) string {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		return ""
	}
	if normalized, err := fetcher.NormalizeURL(raw); err == nil {
		return normalized
	}
	return raw
}

// queryLimit parses ?limit=, writing a 400 response and returning false
// when it is not a positive integer.
func (s *Server) queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: msg})
}
