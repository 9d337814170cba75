package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	obscontext "github.com/smallbiznis/crowdspace/internal/observability/context"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	contextEmailKey  = "user_email"
)

var errInvalidToken = errors.New("invalid_token")

// AccessClaims is the caller identity carried in the bearer token.
// Subject holds the user id.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// AuthRequired authenticates the caller from an HS256 bearer token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	secret := []byte(s.cfg.AuthJWTSecret)
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || len(secret) == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := parseAccessToken(token, secret)
		if err != nil {
			s.log.Debug("rejected bearer token", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := snowflake.ParseString(strings.TrimSpace(claims.Subject))
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Set(contextEmailKey, strings.ToLower(strings.TrimSpace(claims.Email)))

		ctx := obscontext.WithActor(c.Request.Context(), "user", userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseAccessToken(raw string, secret []byte) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (s *Server) userIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(snowflake.ID)
	if !ok || userID == 0 {
		return 0, false
	}
	return userID, true
}

func (s *Server) emailFromContext(c *gin.Context) string {
	return c.GetString(contextEmailKey)
}
