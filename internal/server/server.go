package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crowdspace/internal/audit"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/authorization"
	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/directory"
	"github.com/smallbiznis/crowdspace/internal/invitation"
	invitationdomain "github.com/smallbiznis/crowdspace/internal/invitation/domain"
	"github.com/smallbiznis/crowdspace/internal/membership"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/notification"
	"github.com/smallbiznis/crowdspace/internal/observability"
	obsmiddleware "github.com/smallbiznis/crowdspace/internal/observability/logger"
	obstracing "github.com/smallbiznis/crowdspace/internal/observability/tracing"
	"github.com/smallbiznis/crowdspace/internal/organization"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/providers/email"
	"github.com/smallbiznis/crowdspace/internal/ratelimit"
	"github.com/smallbiznis/crowdspace/internal/role"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	role.Module,
	audit.Module,
	membership.Module,
	organization.Module,
	email.Module,
	notification.Module,
	invitation.Module,
	authorization.Module,
	directory.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	membershipSvc   membershipdomain.Service
	invitationSvc   invitationdomain.Service
	organizationSvc organizationdomain.Service
	directory       directory.Directory
	limiter         invitationLimiter
}

// invitationLimiter is the part of ratelimit.InvitationLimiter the handlers use.
type invitationLimiter interface {
	Enabled() bool
	AllowSend(ctx context.Context, orgID string) (*ratelimit.RateLimitResult, error)
	TryLockAnswer(ctx context.Context, orgID, email string) (string, bool, error)
	ReleaseAnswer(ctx context.Context, orgID, email, token string)
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	MembershipSvc   membershipdomain.Service
	InvitationSvc   invitationdomain.Service
	OrganizationSvc organizationdomain.Service
	Directory       directory.Directory
	Limiter         *ratelimit.InvitationLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		membershipSvc:   p.MembershipSvc,
		invitationSvc:   p.InvitationSvc,
		organizationSvc: p.OrganizationSvc,
		directory:       p.Directory,
		limiter:         p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.GET("/me/invitations", s.ListMyInvitations)

	// -------- Organizations --------
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations", s.ListOrganizations)
	api.GET("/organizations/:id", s.GetOrganization)
	api.PATCH("/organizations/:id", s.RequireCapability(role.WriteOrganization), s.UpdateOrganization)
	api.GET("/organizations/:id/audit-logs", s.RequireCapability(role.WriteMembers), s.ListAuditLogs)

	// -------- Members --------
	api.GET("/organizations/:id/members", s.RequireCapability(role.ReadMembers), s.ListMembers)
	api.PATCH("/organizations/:id/members/:userID", s.RequireCapability(role.WriteMembers), s.ChangeMemberRole)
	// Authorized in the handler: members may remove themselves.
	api.DELETE("/organizations/:id/members/:userID", s.RemoveMember)

	// -------- Invitations --------
	api.POST("/organizations/:id/invitations", s.RequireCapability(role.WriteMembers), s.InvitationSendRateLimit(), s.SendInvitation)
	api.GET("/organizations/:id/invitations", s.RequireCapability(role.ReadMembers), s.ListPendingInvitations)
	api.POST("/organizations/:id/invitations/answer", s.AnswerInvitation)
	api.DELETE("/organizations/:id/invitations/:email", s.RequireCapability(role.WriteMembers), s.RevokeInvitation)

	// -------- Followers --------
	api.PUT("/organizations/:id/follow", s.FollowOrganization)
	api.DELETE("/organizations/:id/follow", s.UnfollowOrganization)
	api.GET("/organizations/:id/followers", s.ListFollowers)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
