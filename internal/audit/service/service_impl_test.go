package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	"github.com/smallbiznis/crowdspace/internal/audit/repository"
	"github.com/smallbiznis/crowdspace/internal/clock"
	obscontext "github.com/smallbiznis/crowdspace/internal/observability/context"
	"github.com/smallbiznis/crowdspace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) auditdomain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(42)
	target := " 7 "

	ctx := obscontext.WithActor(context.Background(), "user", "1001")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	err := svc.AuditLog(ctx, &orgID, "", nil, auditdomain.ActionMemberAdded, "member", &target, map[string]any{"role": "MEMBER"})
	require.NoError(t, err)

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{OrgID: orgID})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "1001", *entry.ActorID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "7", *entry.TargetID)
	assert.Equal(t, "MEMBER", entry.Metadata["role"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(42)

	require.NoError(t, svc.AuditLog(context.Background(), &orgID, "", nil, auditdomain.ActionInvitationRevoked, "", nil, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{OrgID: orgID, Action: auditdomain.ActionInvitationRevoked})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), logs[0].ActorType)
	assert.Equal(t, "unknown", logs[0].TargetType)
	assert.Nil(t, logs[0].ActorID)
}

func TestAuditLogValidation(t *testing.T) {
	svc := newTestService(t)

	err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "member", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestAuditLogMasksEmailsInMetadata(t *testing.T) {
	svc := newTestService(t)
	orgID := snowflake.ID(42)

	require.NoError(t, svc.AuditLog(context.Background(), &orgID, "", nil, auditdomain.ActionInvitationSent, "invitation", nil, map[string]any{
		"email": "bob@example.com",
		"role":  "MEMBER",
	}))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{OrgID: orgID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "b***@example.com", logs[0].Metadata["email"])
	assert.Equal(t, "MEMBER", logs[0].Metadata["role"])
}
