package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) SubscribeToAddon(c *gin.Context) {
	row, err := s.pricingSvc.SubscribeToAddon(c.Request.Context(), c.Param("tenant_id"), c.Param("addon_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) UnsubscribeFromAddon(c *gin.Context) {
	err := s.pricingSvc.UnsubscribeFromAddon(c.Request.Context(), c.Param("tenant_id"), c.Param("addon_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}
