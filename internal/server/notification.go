package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
)

func (s *Server) ListNotifications(c *gin.Context) {
	var req notificationdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	notification, err := s.notificationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notification})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	notification, err := s.notificationSvc.MarkAsRead(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notification})
}
