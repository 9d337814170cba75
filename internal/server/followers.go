package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) FollowOrganization(c *gin.Context) {
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

	follower, err := s.invitationSvc.FollowOrganization(c.Request.Context(), userID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, follower)
}

func (s *Server) UnfollowOrganization(c *gin.Context) {
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

	if err := s.invitationSvc.UnfollowOrganization(c.Request.Context(), userID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListFollowers(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invitationSvc.ListFollowers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
