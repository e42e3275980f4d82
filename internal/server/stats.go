package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type aggregateStatsRequest struct {
	Date string `json:"date"` // YYYY-MM-DD; yesterday (UTC) when omitted
}

func (s *Server) AggregateDailyStats(c *gin.Context) {
	var req aggregateStatsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	date := s.clock.Now().UTC().AddDate(0, 0, -1)
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		date = parsed
	}

	summary, err := s.aggregationSvc.AggregateDailyStats(c.Request.Context(), c.Param("tenant_id"), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
