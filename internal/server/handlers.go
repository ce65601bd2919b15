package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/internal/output"
)

// handleIndex renders the lookup page. With a domain query parameter the
// lookup runs server-side and the page shows its result, so the form works
// without JavaScript.
func (s *Server) handleIndex(c *gin.Context) {
	view := &output.View{Snapshot: lookup.Snapshot{State: lookup.Idle{}}}
	if domain, ok := c.GetQuery("domain"); ok {
		view = s.lookupOnce(c.Request.Context(), domain)
	}
	c.HTML(http.StatusOK, "index.html", newPage(view))
}

// handleWhois runs a lookup and returns the resulting snapshot as JSON
func (s *Server) handleWhois(c *gin.Context) {
	view := s.lookupOnce(c.Request.Context(), c.Query("domain"))

	status := http.StatusOK
	if f, ok := view.Snapshot.State.(lookup.Failure); ok {
		status = failureStatus(f)
	}
	c.JSON(status, output.NewDocument(view))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	c.Status(http.StatusOK)
	s.metrics.write(c.Writer)
}

// failureStatus maps a failure to the HTTP status of the JSON API
func failureStatus(f lookup.Failure) int {
	if f.Kind == lookup.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// requestLogger logs each request at V(1) with a request ID
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		s.log.V(1).Info("HTTP request",
			"requestID", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
