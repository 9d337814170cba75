package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crowdspace/internal/role"
)

// RequireCapability lets the request through only when the caller's role in
// the organization named by :id grants capability.
func (s *Server) RequireCapability(capability role.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgAction(c, capability); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgAction(c *gin.Context, capability role.Capability) error {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	orgID, err := orgIDFromPath(c)
	if err != nil {
		return err
	}
	return s.authorizeForOrg(c, userID, orgID, capability)
}

func (s *Server) authorizeForOrg(c *gin.Context, userID, orgID snowflake.ID, capability role.Capability) error {
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), userID, orgID, capability)
}
