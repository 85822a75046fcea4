package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
)

func (s *Server) ListStockMovements(c *gin.Context) {
	var req inventorydomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	movements, err := s.inventorySvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": movements})
}

func (s *Server) RecordStockMovement(c *gin.Context) {
	var req inventorydomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	movement, err := s.inventorySvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": movement})
}

func (s *Server) ReconcileStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	quantity, err := s.inventorySvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"product_id": id, "stock_quantity": quantity}})
}
