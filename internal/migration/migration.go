package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/directory"
	followerdomain "github.com/smallbiznis/crowdspace/internal/follower/domain"
	invitationdomain "github.com/smallbiznis/crowdspace/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/organization/event"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded SQL migrations to a PostgreSQL database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	return nil
}

// Models lists every table owned by the service.
func Models() []any {
	return []any{
		&directory.User{},
		&organizationdomain.Organization{},
		&membershipdomain.Membership{},
		&invitationdomain.Invitation{},
		&followerdomain.Follower{},
		&auditdomain.AuditLog{},
		&event.OutboxEvent{},
	}
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and mysql,
// which the SQL migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
