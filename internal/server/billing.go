package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) CheckAICap(c *gin.Context) {
	status, err := s.billingSvc.CheckAICap(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if status.Capped {
		s.metrics.AICapDenials.Inc()
	}
	c.JSON(http.StatusOK, status)
}

type recordAIUsageRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (s *Server) RecordAIUsage(c *gin.Context) {
	req := recordAIUsageRequest{AmountCents: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	err := s.billingSvc.RecordAIUsage(c.Request.Context(), c.Param("tenant_id"), req.AmountCents)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) SubscriptionStatus(c *gin.Context) {
	status, err := s.billingSvc.SubscriptionStatus(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) ProvisionCustomer(c *gin.Context) {
	result, err := s.billingSvc.ProvisionCustomer(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CalculateMonthlyTotal(c *gin.Context) {
	total, err := s.pricingSvc.CalculateMonthlyTotal(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_cents": total})
}
