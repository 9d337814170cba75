package authorization

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	auditdomain "github.com/smallbiznis/crowdspace/internal/audit/domain"
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	"github.com/smallbiznis/crowdspace/internal/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMembers struct {
	membershipdomain.Service
	memberships map[snowflake.ID]*membershipdomain.Membership
	err         error
}

func (f *fakeMembers) GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*membershipdomain.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.memberships[userID], nil
}

type recordedAudit struct {
	action   string
	metadata map[string]any
}

type fakeAudit struct {
	auditdomain.Service
	entries []recordedAudit
	err     error
}

func (f *fakeAudit) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	f.entries = append(f.entries, recordedAudit{action: action, metadata: metadata})
	return f.err
}

func newTestService(t *testing.T, members *fakeMembers) (Service, *fakeAudit, *prometheus.Registry) {
	t.Helper()
	catalog, err := role.NewCatalog(nil)
	require.NoError(t, err)
	audit := &fakeAudit{}
	registry := prometheus.NewRegistry()
	m := metrics.NewMembershipMetrics(registry, metrics.Config{})
	svc := NewService(Params{
		Log:      zaptest.NewLogger(t),
		Catalog:  catalog,
		Members:  members,
		AuditSvc: audit,
		Metrics:  m,
	})
	return svc, audit, registry
}

func counterValue(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue series
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestAuthorizeAllowsAdminWrites(t *testing.T) {
	members := &fakeMembers{memberships: map[snowflake.ID]*membershipdomain.Membership{
		1: {OrgID: 10, UserID: 1, Role: role.Admin},
	}}
	svc, audit, _ := newTestService(t, members)

	require.NoError(t, svc.Authorize(context.Background(), 1, 10, role.WriteMembers))
	assert.Empty(t, audit.entries)
}

func TestAuthorizeDeniesMemberWrites(t *testing.T) {
	members := &fakeMembers{memberships: map[snowflake.ID]*membershipdomain.Membership{
		2: {OrgID: 10, UserID: 2, Role: role.Member},
	}}
	svc, audit, registry := newTestService(t, members)

	require.NoError(t, svc.Authorize(context.Background(), 2, 10, role.ReadMembers))

	err := svc.Authorize(context.Background(), 2, 10, role.WriteMembers)
	assert.ErrorIs(t, err, ErrForbidden)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, auditdomain.ActionAuthorizationDenied, audit.entries[0].action)
	assert.Equal(t, "MEMBER", audit.entries[0].metadata["role"])
	assert.Equal(t, float64(1), counterValue(t, registry, "crowdspace_authorization_denied_total", map[string]string{"capability": string(role.WriteMembers)}))
}

func TestAuthorizeDeniesNonMembers(t *testing.T) {
	svc, audit, _ := newTestService(t, &fakeMembers{})

	err := svc.Authorize(context.Background(), 3, 10, role.ReadMembers)
	assert.ErrorIs(t, err, ErrForbidden)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, false, audit.entries[0].metadata["member"])
}

func TestAuthorizePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	svc, audit, _ := newTestService(t, &fakeMembers{err: boom})

	err := svc.Authorize(context.Background(), 3, 10, role.ReadMembers)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, audit.entries)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeMembers{})

	assert.ErrorIs(t, svc.Authorize(context.Background(), 0, 10, role.ReadMembers), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(context.Background(), 1, 0, role.ReadMembers), ErrInvalidOrganization)
}

func TestAuthorizeLogsDenialAuditFailures(t *testing.T) {
	catalog, err := role.NewCatalog(nil)
	require.NoError(t, err)
	core, logs := observer.New(zap.WarnLevel)
	audit := &fakeAudit{err: errors.New("audit store down")}
	svc := NewService(Params{
		Log:      zap.New(core),
		Catalog:  catalog,
		Members:  &fakeMembers{},
		AuditSvc: audit,
	})

	err = svc.Authorize(context.Background(), 3, 10, role.WriteMembers)
	assert.ErrorIs(t, err, ErrForbidden)

	entries := logs.FilterMessage("audit log failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, auditdomain.ActionAuthorizationDenied, entries[0].ContextMap()["action"])
}
