package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/invitation/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, invitation domain.Invitation) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_invitations (id, org_id, email, role, invited_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.OrgID,
		invitation.Email,
		invitation.Role,
		invitation.InvitedBy,
		invitation.CreatedAt,
	).Error
}

func (r *repository) Find(ctx context.Context, orgID snowflake.ID, email string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND email = ?", orgID, email).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) Delete(ctx context.Context, orgID snowflake.ID, email string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_invitations WHERE org_id = ? AND email = ?`,
		orgID,
		email,
	)
	return result.RowsAffected, result.Error
}

func (r *repository) ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC, id ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) ListByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at ASC, id ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}
