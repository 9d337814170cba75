package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crowdspace/internal/role"
	"go.uber.org/zap"
)

type sendInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type answerInvitationRequest struct {
	Accept *bool `json:"accept"`
}

func (s *Server) SendInvitation(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req sendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	r, err := role.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invitationSvc.SendInvitation(c.Request.Context(), orgID, req.Email, r, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, inv)
}

func (s *Server) ListPendingInvitations(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invitationSvc.GetPendingInvitations(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	email := strings.TrimSpace(c.Param("email"))
	if err := s.invitationSvc.RevokeInvitation(c.Request.Context(), orgID, email); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AnswerInvitation answers the caller's own invitation; the e-mail comes from the token.
func (s *Server) AnswerInvitation(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req answerInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Accept == nil {
		AbortWithError(c, newValidationError("accept", "required", "accept is required"))
		return
	}

	ctx := c.Request.Context()
	email := s.emailFromContext(c)

	token, acquired, err := s.limiter.TryLockAnswer(ctx, orgID.String(), email)
	if err != nil {
		s.log.Warn("invitation answer lock failed", zap.String("org_id", orgID.String()), zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if !acquired {
		// The winner may still fail and keep the invitation, so the client has to retry.
		c.Header("Retry-After", "1")
		AbortWithError(c, ErrAnswerInProgress)
		return
	}
	defer s.limiter.ReleaseAnswer(ctx, orgID.String(), email, token)

	if err := s.invitationSvc.AnswerInvitation(ctx, userID, email, *req.Accept, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListMyInvitations(c *gin.Context) {
	items, err := s.invitationSvc.GetAllInvitationsForUser(c.Request.Context(), s.emailFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
