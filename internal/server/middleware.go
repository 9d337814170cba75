package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/crowdspace/internal/observability/context"
)

func orgIDFromPath(c *gin.Context) (snowflake.ID, error) {
	orgID, err := parseIDParam(c, "id", "organization_id")
	if err != nil {
		return 0, err
	}
	ctx := obscontext.WithOrgID(c.Request.Context(), orgID.String())
	c.Request = c.Request.WithContext(ctx)
	return orgID, nil
}

func parseIDParam(c *gin.Context, name, field string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, newValidationError(field, "invalid_"+field, "invalid "+strings.ReplaceAll(field, "_", " "))
	}
	return id, nil
}
