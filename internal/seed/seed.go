package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/directory"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultOrgName = "Main"

// EnsureDefaultOrganization gives the bootstrap admin a user row and an organization
// they administer. It does nothing when bootstrap is disabled or the admin already
// belongs to an organization.
func EnsureDefaultOrganization(ctx context.Context, db *gorm.DB, orgs organizationdomain.Service, cfg config.BootstrapConfig, log *zap.Logger) error {
	if !cfg.EnsureDefaultOrganization {
		return nil
	}
	if db == nil || orgs == nil {
		return errors.New("seed dependencies are required")
	}
	adminID := snowflake.ID(cfg.DefaultAdminUserID)
	if adminID == 0 {
		return errors.New("BOOTSTRAP_ADMIN_USER_ID is required when bootstrap is enabled")
	}

	if err := ensureAdminUser(ctx, db, adminID, cfg.DefaultAdminEmail); err != nil {
		return err
	}

	existing, err := orgs.ListOrganizationsByUser(ctx, adminID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	name := strings.TrimSpace(cfg.DefaultOrganizationName)
	if name == "" {
		name = defaultOrgName
	}
	org, err := orgs.Create(ctx, adminID, organizationdomain.CreateOrganizationRequest{Name: name})
	if err != nil {
		return err
	}
	log.Named("seed").Info("default organization created",
		zap.String("org_id", org.ID),
		zap.String("admin_user_id", adminID.String()),
	)
	return nil
}

func ensureAdminUser(ctx context.Context, db *gorm.DB, id snowflake.ID, email string) error {
	var user directory.User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user = directory.User{
		ID:        id,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		FirstName: "Crowdspace",
		LastName:  "Admin",
	}
	return db.WithContext(ctx).Create(&user).Error
}
