package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/audit/masking"
	"github.com/smallbiznis/crowdspace/internal/clock"
	followerdomain "github.com/smallbiznis/crowdspace/internal/follower/domain"
	"github.com/smallbiznis/crowdspace/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/notification"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/role"
	"github.com/smallbiznis/crowdspace/pkg/db"
	"github.com/smallbiznis/crowdspace/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	notifyTimeout = 30 * time.Second

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	FollowerRepo followerdomain.Repository
	OrgRepo      organizationdomain.Repository
	Members      membershipdomain.Service
	Notifier     notification.Notifier      `optional:"true"`
	AuditSvc     auditdomain.Service        `optional:"true"`
	Metrics      *metrics.MembershipMetrics `optional:"true"`
	OTel         *metrics.Metrics           `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	followerRepo followerdomain.Repository
	orgRepo      organizationdomain.Repository
	members      membershipdomain.Service
	notifier     notification.Notifier
	auditSvc     auditdomain.Service
	metrics      *metrics.MembershipMetrics
	otel         *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("invitation.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		followerRepo: p.FollowerRepo,
		orgRepo:      p.OrgRepo,
		members:      p.Members,
		notifier:     p.Notifier,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
		otel:         p.OTel,
	}
}

func (s *Service) SendInvitation(ctx context.Context, orgID snowflake.ID, email string, r role.Role, invitedBy snowflake.ID) (*domain.Invitation, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if invitedBy == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !r.Valid() {
		return nil, domain.ErrInvalidRole
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}

	invitation := domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     normalized,
		Role:      r,
		InvitedBy: invitedBy,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, invitation); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.metrics.IncConflict(metrics.ConflictDuplicateInvitation)
			return nil, domain.ErrDuplicateInvitation
		}
		return nil, err
	}

	s.otel.RecordInvitationSent(ctx, string(r))
	s.audit(ctx, orgID, auditdomain.ActionInvitationSent, invitation.ID, map[string]any{
		"email":      masking.MaskEmail(normalized),
		"role":       string(r),
		"invited_by": invitedBy.String(),
	})
	s.notify(ctx, normalized, org.Name, r)

	return &invitation, nil
}

func (s *Service) RevokeInvitation(ctx context.Context, orgID snowflake.ID, email string) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	invitation, err := s.repo.Find(ctx, orgID, normalized)
	if err != nil {
		return err
	}
	if invitation == nil {
		return nil
	}

	removed, err := s.repo.Delete(ctx, orgID, normalized)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.audit(ctx, orgID, auditdomain.ActionInvitationRevoked, invitation.ID, map[string]any{
			"email": masking.MaskEmail(normalized),
		})
	}
	return nil
}

func (s *Service) GetAllInvitationsForUser(ctx context.Context, email string) ([]domain.Invitation, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByEmail(ctx, normalized)
}

func (s *Service) GetPendingInvitations(ctx context.Context, orgID snowflake.ID) ([]domain.Invitation, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListByOrganization(ctx, orgID)
}

// AnswerInvitation is a no-op when no invitation is pending for (orgID, email).
// Accepting while already a member counts as success and still consumes the invitation.
func (s *Service) AnswerInvitation(ctx context.Context, userID snowflake.ID, email string, accept bool, orgID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	invitation, err := s.repo.Find(ctx, orgID, normalized)
	if err != nil {
		return err
	}
	if invitation == nil {
		s.log.Debug("no pending invitation to answer",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", userID.String()),
		)
		return nil
	}

	action, outcome := auditdomain.ActionInvitationRejected, outcomeRejected
	if accept {
		action, outcome = auditdomain.ActionInvitationAccepted, outcomeAccepted
		if _, err := s.members.AddMember(ctx, userID, orgID, invitation.Role); err != nil {
			if !errors.Is(err, membershipdomain.ErrAlreadyMember) {
				return err
			}
			s.metrics.IncAcceptAlreadyMember()
			s.log.Info("invitation accepted by existing member",
				zap.String("org_id", orgID.String()),
				zap.String("user_id", userID.String()),
			)
		}
	}

	removed, err := s.repo.Delete(ctx, orgID, normalized)
	if err != nil {
		return err
	}
	if removed == 0 {
		// a concurrent answer or revoke already consumed it
		return nil
	}

	s.otel.RecordInvitationAnswered(ctx, outcome)
	s.audit(ctx, orgID, action, invitation.ID, map[string]any{
		"user_id": userID.String(),
		"role":    string(invitation.Role),
	})
	return nil
}

// FollowOrganization returns the existing follower row when the user already follows orgID.
func (s *Service) FollowOrganization(ctx context.Context, userID, orgID snowflake.ID) (*followerdomain.Follower, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	existing, err := s.followerRepo.Find(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}

	follower := followerdomain.Follower{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.followerRepo.Insert(ctx, follower); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		winner, findErr := s.followerRepo.Find(ctx, orgID, userID)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, err
		}
		return winner, nil
	}

	return &follower, nil
}

func (s *Service) UnfollowOrganization(ctx context.Context, userID, orgID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	_, err := s.followerRepo.Delete(ctx, orgID, userID)
	return err
}

func (s *Service) ListFollowers(ctx context.Context, orgID snowflake.ID) ([]followerdomain.Follower, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.followerRepo.ListByOrganization(ctx, orgID)
}

// notify never blocks the caller and never reports failure back to it.
func (s *Service) notify(ctx context.Context, email, organizationName string, r role.Role) {
	if s.notifier == nil {
		return
	}

	detached := notification.WithRole(context.WithoutCancel(ctx), string(r))
	go func() {
		sendCtx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()
		sendCtx = ctxlogger.ContextWithEventSubject(sendCtx, "invitation.notify")

		if err := s.notifier.Notify(sendCtx, email, organizationName); err != nil {
			s.metrics.IncNotificationFailure()
			ctxlogger.WithContext(sendCtx, s.log).Warn("invitation notification failed",
				zap.String("email", masking.MaskEmail(email)),
				zap.String("organization", organizationName),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, invitationID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := invitationID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "invitation", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
