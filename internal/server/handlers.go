package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/report"
	"github.com/vulnsight/vulnsight/internal/runner"
	"github.com/vulnsight/vulnsight/internal/storage"
	"github.com/vulnsight/vulnsight/internal/version"
)

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"commit":    version.Commit,
		"buildDate": version.BuildDate,
	})
}

// dashboard renders the history page.
func (s *Server) dashboard(c *gin.Context) {
	history, err := s.store.History(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load scan history: %v", err)
		return
	}
	c.HTML(http.StatusOK, "dashboard.html.tmpl", gin.H{
		"Version": version.Version,
		"History": history,
	})
}

func (s *Server) listScans(c *gin.Context) {
	history, err := s.store.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan history: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scans": history,
		"total": len(history),
	})
}

// StartScanRequest represents the request body for starting a scan
type StartScanRequest struct {
	Target string `json:"target" binding:"required"`
}

// startScan queues a full scan and answers with the job to poll.
func (s *Server) startScan(c *gin.Context) {
	var req StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	target, err := runner.ValidateTarget(req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.jobs.Start(target)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Header("Location", "/api/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) listJobs(c *gin.Context) {
	jobs := s.jobs.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (s *Server) getJob(c *gin.Context) {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// loadScan fetches the scan named by the :id parameter, writing the error
// response itself when it cannot.
func (s *Server) loadScan(c *gin.Context) (*storage.Scan, bool) {
	scan, err := s.store.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return nil, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan: " + err.Error()})
		return nil, false
	}
	return scan, true
}

func (s *Server) getScan(c *gin.Context) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (s *Server) getReportHTML(c *gin.Context) {
	s.serveReport(c, "text/html; charset=utf-8", "", report.RenderHTML)
}

func (s *Server) getReportPDF(c *gin.Context) {
	s.serveReport(c, "application/pdf", "pdf", report.RenderPDF)
}

// serveReport renders the scan into memory first so a render error can
// still produce a clean 500. A non-empty ext makes the response a download.
func (s *Server) serveReport(c *gin.Context, contentType, ext string,
	render func(io.Writer, *output.Record, report.Meta) error) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	meta := report.Meta{ID: scan.ID, Timestamp: scan.Timestamp}
	if err := render(&buf, scan.Record, meta); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Report generation failed: " + err.Error()})
		return
	}
	if ext != "" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="vulnsight_%s.%s"`, scan.ID, ext))
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
