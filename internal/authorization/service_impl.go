package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	"github.com/smallbiznis/crowdspace/internal/role"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Catalog  *role.Catalog
	Members  membershipdomain.Service
	AuditSvc auditdomain.Service        `optional:"true"`
	Metrics  *metrics.MembershipMetrics `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	catalog  *role.Catalog
	members  membershipdomain.Service
	auditSvc auditdomain.Service
	metrics  *metrics.MembershipMetrics
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		catalog:  p.Catalog,
		members:  p.Members,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID, orgID snowflake.ID, capability role.Capability) error {
	if userID == 0 {
		return ErrInvalidActor
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}

	membership, err := s.members.GetMembership(ctx, orgID, userID)
	if err != nil {
		return err
	}

	if HasCapability(s.catalog, membership, capability) {
		return nil
	}

	roleName := ""
	if membership != nil {
		roleName = string(membership.Role)
	}
	s.log.Info("authorization denied",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", userID.String()),
		zap.String("capability", string(capability)),
		zap.String("role", roleName),
	)
	s.metrics.IncAuthorizationDenied(string(capability))
	s.auditDenied(ctx, userID, orgID, capability, roleName)
	return ErrForbidden
}

func (s *ServiceImpl) auditDenied(ctx context.Context, userID, orgID snowflake.ID, capability role.Capability, roleName string) {
	if s.auditSvc == nil {
		return
	}
	actorID := userID.String()
	targetID := "capability"
	err := s.auditSvc.AuditLog(ctx, &orgID, string(auditdomain.ActorTypeUser), &actorID, auditdomain.ActionAuthorizationDenied, "authorization", &targetID, map[string]any{
		"capability": string(capability),
		"role":       roleName,
		"member":     roleName != "",
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", auditdomain.ActionAuthorizationDenied), zap.Error(err))
	}
}
