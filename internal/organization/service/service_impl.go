package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/clock"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/organization/event"
	"github.com/smallbiznis/crowdspace/internal/role"
	"github.com/smallbiznis/crowdspace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	MemberRepo membershipdomain.Repository
	Publisher  event.EventPublisher
	AuditSvc   auditdomain.Service `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	memberRepo membershipdomain.Repository
	publisher  event.EventPublisher
	auditSvc   auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("organization.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		publisher:  p.Publisher,
		auditSvc:   p.AuditSvc,
	}
}

// Create stores the organization and admits the creator as Admin in one transaction.
func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	orgSlug := slug.Make(name)
	if orgSlug == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:          orgID,
		Name:        name,
		Slug:        orgSlug,
		Description: strings.TrimSpace(req.Description),
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := json.Marshal(map[string]string{
		"organization_id": orgID.String(),
		"owner_user_id":   userID.String(),
		"slug":            orgSlug,
		"created_at":      now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrganization(ctx, org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}

		member := membershipdomain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      role.Admin,
			CreatedAt: now,
		}
		if err := s.memberRepo.WithTx(tx).Insert(ctx, member); err != nil {
			return err
		}

		return s.publisher.WithTx(tx).Publish(ctx, orgID, event.OrganizationCreatedTopic, payload)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", orgID.String()),
		zap.String("owner_user_id", userID.String()),
	)
	s.audit(ctx, orgID, userID, auditdomain.ActionOrganizationCreated, map[string]any{"slug": orgSlug})

	return toResponse(org), nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.OrganizationResponse, error) {
	if id == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}

	return toResponse(*org), nil
}

func (s *service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if id == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}

	changed := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if name != org.Name {
			org.Name = name
			changed["name"] = name
		}
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description != org.Description {
			org.Description = description
			changed["description"] = description
		}
	}
	if len(changed) == 0 {
		return toResponse(*org), nil
	}
	org.UpdatedAt = s.clock.Now()

	payload, err := json.Marshal(map[string]any{
		"organization_id": org.ID.String(),
		"changes":         changed,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateOrganization(ctx, *org); err != nil {
			return err
		}
		return s.publisher.WithTx(tx).Publish(ctx, org.ID, event.OrganizationUpdatedTopic, payload)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, org.ID, userID, auditdomain.ActionOrganizationUpdated, changed)
	return toResponse(*org), nil
}

func (s *service) audit(ctx context.Context, orgID, actorID snowflake.ID, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var actor *string
	actorType := ""
	if actorID != 0 {
		value := actorID.String()
		actor = &value
		actorType = string(auditdomain.ActorTypeUser)
	}
	targetID := orgID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, actorType, actor, action, "organization", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func toResponse(org domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:          org.ID.String(),
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		CreatedAt:   org.CreatedAt,
		UpdatedAt:   org.UpdatedAt,
	}
}
