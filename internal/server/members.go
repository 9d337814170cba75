package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crowdspace/internal/directory"
	"github.com/smallbiznis/crowdspace/internal/role"
	"go.uber.org/zap"
)

type memberResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type changeMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) ListMembers(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	members, err := s.membershipSvc.ListMembers(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ids := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}

	// Profiles are decoration; a directory outage still returns the roster.
	profiles := map[snowflake.ID]directory.Profile{}
	if s.directory != nil && len(ids) > 0 {
		found, err := s.directory.Lookup(ctx, ids)
		if err != nil {
			s.log.Warn("member profile lookup failed", zap.String("org_id", orgID.String()), zap.Error(err))
		}
		for _, p := range found {
			profiles[p.ID] = p
		}
	}

	items := make([]memberResponse, 0, len(members))
	for _, m := range members {
		item := memberResponse{
			UserID:    m.UserID.String(),
			Role:      m.Role.String(),
			CreatedAt: m.CreatedAt,
		}
		if p, ok := profiles[m.UserID]; ok {
			item.FirstName = p.FirstName
			item.LastName = p.LastName
			item.Email = p.Email
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ChangeMemberRole(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	targetID, err := parseIDParam(c, "userID", "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req changeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	newRole, err := role.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.membershipSvc.ChangeRole(c.Request.Context(), orgID, targetID, newRole); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveMember requires WriteMembers unless callers remove themselves.
func (s *Server) RemoveMember(c *gin.Context) {
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
	targetID, err := parseIDParam(c, "userID", "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if targetID != userID {
		if err := s.authorizeForOrg(c, userID, orgID, role.WriteMembers); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	if err := s.membershipSvc.RemoveMember(c.Request.Context(), targetID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
