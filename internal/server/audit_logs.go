package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
)

type listAuditLogsQuery struct {
	Action string `form:"action"`
	Limit  int    `form:"limit"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	orgID, err := orgIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		OrgID:  orgID,
		Action: strings.TrimSpace(query.Action),
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
