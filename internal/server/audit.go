package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
)

func bindAuditListRequest(c *gin.Context) (auditdomain.ListRequest, error) {
	var req auditdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return req, invalidRequestError()
	}
	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{
		{"start_at", &req.StartAt},
		{"end_at", &req.EndAt},
	} {
		raw := c.Query(bound.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, auditdomain.ErrInvalidTimeRange
		}
		*bound.dst = &t
	}
	return req, nil
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	req, err := bindAuditListRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListAllAuditLogs(c *gin.Context) {
	req, err := bindAuditListRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.ListAll(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListSystemLogs(c *gin.Context) {
	var req syslogdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, err := s.syslogSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
