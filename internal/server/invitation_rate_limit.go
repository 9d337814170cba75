package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crowdspace/internal/observability/logger"
	"go.uber.org/zap"
)

// InvitationSendRateLimit throttles invitation sends per organization.
func (s *Server) InvitationSendRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		orgID, err := orgIDFromPath(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowSend(ctx, orgID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("invitation rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("invitation rate limit exceeded",
				zap.String("org_id", orgID.String()),
				zap.Duration("retry_after", result.RetryAfter),
			)
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
