package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
)

func (s *Server) CreateTenant(c *gin.Context) {
	var req tenantdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenant, err := s.tenantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) ListTenants(c *gin.Context) {
	tenants, err := s.tenantSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenants})
}

func (s *Server) GetTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tenant, err := s.tenantSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) SuspendTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tenant, err := s.tenantSvc.Suspend(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) ActivateTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tenant, err := s.tenantSvc.Activate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) DeleteTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.tenantSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.tenantSvc.GetSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req tenantdomain.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.tenantSvc.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) ListConnectors(c *gin.Context) {
	connectors, err := s.tenantSvc.ListConnectors(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": connectors})
}

func (s *Server) UpsertConnector(c *gin.Context) {
	var req tenantdomain.ConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	connector, err := s.tenantSvc.UpsertConnector(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": connector})
}
