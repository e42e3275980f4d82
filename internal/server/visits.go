package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) TrackVisit(c *gin.Context) {
	result, err := s.visitCapSvc.TrackVisit(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result.AtCap {
		s.metrics.VisitCapDenials.Inc()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CheckVisitCap(c *gin.Context) {
	usage, err := s.visitCapSvc.CheckVisitCap(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) EnforceCap(c *gin.Context) {
	prompt, err := s.visitCapSvc.EnforceCap(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (s *Server) ResetMonthlyCounters(c *gin.Context) {
	if err := s.visitCapSvc.ResetMonthlyCounters(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
