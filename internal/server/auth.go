package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/identity"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.userSvc.VerifyCredentials(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.tokens.Issue(user.Identity(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

func (s *Server) Me(c *gin.Context) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, identity.ErrUnauthenticated)
		return
	}

	ctx := c.Request.Context()
	if id.TenantID == nil {
		// Superadmins live outside every tenant partition.
		ctx = tenantctx.WithBypass(ctx)
	}
	user, err := s.userSvc.Get(ctx, id.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toUserResponse(user)})
}
