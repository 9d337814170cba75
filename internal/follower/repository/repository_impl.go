package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/follower/domain"
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

func (r *repository) Insert(ctx context.Context, follower domain.Follower) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_followers (id, org_id, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		follower.ID,
		follower.OrgID,
		follower.UserID,
		follower.CreatedAt,
	).Error
}

func (r *repository) Find(ctx context.Context, orgID, userID snowflake.ID) (*domain.Follower, error) {
	var follower domain.Follower
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&follower).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &follower, nil
}

func (r *repository) Delete(ctx context.Context, orgID, userID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_followers WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	)
	return result.RowsAffected, result.Error
}

func (r *repository) ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.Follower, error) {
	var followers []domain.Follower
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC, id ASC").
		Find(&followers).Error
	if err != nil {
		return nil, err
	}
	return followers, nil
}
