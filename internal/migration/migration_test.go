package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/crowdspace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestAutoMigrateCreatesUniqueIndexes(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))
	require.NoError(t, AutoMigrate(conn))

	migrator := conn.Migrator()
	for _, table := range []string{
		"users",
		"organizations",
		"organization_members",
		"organization_invitations",
		"organization_followers",
		"audit_logs",
		"events",
	} {
		assert.True(t, migrator.HasTable(table), table)
	}

	assert.True(t, migrator.HasIndex("organization_members", "ux_org_members_org_user"))
	assert.True(t, migrator.HasIndex("organization_invitations", "ux_org_invitations_org_email"))
	assert.True(t, migrator.HasIndex("organization_followers", "ux_org_followers_org_user"))
	assert.True(t, migrator.HasIndex("organizations", "ux_organizations_slug"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
	assert.Error(t, AutoMigrate(nil))
}
