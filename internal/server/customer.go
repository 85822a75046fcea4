package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
)

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (s *Server) ListCustomers(c *gin.Context) {
	customers, err := s.customerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customers})
}

func (s *Server) GetCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	customer, err := s.customerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req customerdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id

	customer, err := s.customerSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (s *Server) DeleteCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.customerSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
