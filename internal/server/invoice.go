package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoices, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req invoicedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id

	invoice, err := s.invoiceSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.invoiceSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) IssueInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Issue(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) PayInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Pay(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) VoidInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Void(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
