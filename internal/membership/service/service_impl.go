package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/clock"
	"github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	"github.com/smallbiznis/crowdspace/internal/role"
	"github.com/smallbiznis/crowdspace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service        `optional:"true"`
	Metrics  *metrics.MembershipMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
	metrics  *metrics.MembershipMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("membership.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) AddMember(ctx context.Context, userID, orgID snowflake.ID, r role.Role) (*domain.Membership, error) {
	if err := validateKey(userID, orgID); err != nil {
		return nil, err
	}
	if !r.Valid() {
		return nil, domain.ErrInvalidRole
	}

	member := domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      r,
		CreatedAt: s.clock.Now(),
	}

	// the unique index on (org_id, user_id) decides concurrent inserts
	if err := s.repo.Insert(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.metrics.IncConflict(metrics.ConflictAlreadyMember)
			return nil, domain.ErrAlreadyMember
		}
		return nil, err
	}

	s.audit(ctx, orgID, auditdomain.ActionMemberAdded, userID, map[string]any{
		"role": string(r),
	})

	return &member, nil
}

func (s *Service) RemoveMember(ctx context.Context, userID, orgID snowflake.ID) error {
	if err := validateKey(userID, orgID); err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}

	s.audit(ctx, orgID, auditdomain.ActionMemberRemoved, userID, nil)
	return nil
}

func (s *Service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.Membership, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListByOrganization(ctx, orgID)
}

func (s *Service) ChangeRole(ctx context.Context, orgID, targetUserID snowflake.ID, newRole role.Role) error {
	if err := validateKey(targetUserID, orgID); err != nil {
		return err
	}
	if !newRole.Valid() {
		return domain.ErrInvalidRole
	}

	existing, err := s.repo.Find(ctx, orgID, targetUserID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrMembershipNotFound
	}
	if existing.Role == newRole {
		return nil
	}

	updated, err := s.repo.UpdateRole(ctx, orgID, targetUserID, newRole)
	if err != nil {
		return err
	}
	if updated == 0 {
		return domain.ErrMembershipNotFound
	}

	s.audit(ctx, orgID, auditdomain.ActionMemberRoleChanged, targetUserID, map[string]any{
		"from": string(existing.Role),
		"to":   string(newRole),
	})
	return nil
}

func (s *Service) GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.Membership, error) {
	if orgID == 0 || userID == 0 {
		return nil, nil
	}
	return s.repo.Find(ctx, orgID, userID)
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, userID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := userID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "member", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed",
			zap.String("action", action),
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
	}
}

func validateKey(userID, orgID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	return nil
}
