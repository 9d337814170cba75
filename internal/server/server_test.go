package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	auditrepository "github.com/smallbiznis/crowdspace/internal/audit/repository"
	auditservice "github.com/smallbiznis/crowdspace/internal/audit/service"
	"github.com/smallbiznis/crowdspace/internal/authorization"
	"github.com/smallbiznis/crowdspace/internal/clock"
	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/directory"
	followerrepository "github.com/smallbiznis/crowdspace/internal/follower/repository"
	invitationrepository "github.com/smallbiznis/crowdspace/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/crowdspace/internal/invitation/service"
	membershiprepository "github.com/smallbiznis/crowdspace/internal/membership/repository"
	membershipservice "github.com/smallbiznis/crowdspace/internal/membership/service"
	"github.com/smallbiznis/crowdspace/internal/migration"
	"github.com/smallbiznis/crowdspace/internal/observability"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	"github.com/smallbiznis/crowdspace/internal/organization/event"
	organizationrepository "github.com/smallbiznis/crowdspace/internal/organization/repository"
	organizationservice "github.com/smallbiznis/crowdspace/internal/organization/service"
	"github.com/smallbiznis/crowdspace/internal/ratelimit"
	"github.com/smallbiznis/crowdspace/internal/role"
	"github.com/smallbiznis/crowdspace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

const (
	adminID = snowflake.ID(1001)
	bobID   = snowflake.ID(1002)
	carolID = snowflake.ID(1003)
)

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	srv    *Server
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	log := zaptest.NewLogger(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	m := metrics.NewMembershipMetrics(prometheus.NewRegistry(), metrics.Config{})

	catalog, err := role.NewCatalog(nil)
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fakeClock, Repo: auditrepository.Provide(),
	})
	memberRepo := membershiprepository.NewRepository(conn)
	members := membershipservice.NewService(membershipservice.Params{
		Log: log, GenID: node, Clock: fakeClock, Repo: memberRepo, AuditSvc: auditSvc, Metrics: m,
	})
	orgRepo := organizationrepository.NewRepository(conn)
	orgs := organizationservice.NewService(organizationservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Repo:       orgRepo,
		MemberRepo: memberRepo,
		Publisher:  event.NewOutboxPublisher(conn, node, fakeClock),
		AuditSvc:   auditSvc,
	})
	invitations := invitationservice.NewService(invitationservice.Params{
		Log:          log,
		GenID:        node,
		Clock:        fakeClock,
		Repo:         invitationrepository.NewRepository(conn),
		FollowerRepo: followerrepository.NewRepository(conn),
		OrgRepo:      orgRepo,
		Members:      members,
		AuditSvc:     auditSvc,
		Metrics:      m,
	})
	authz := authorization.NewService(authorization.Params{
		Log: log, Catalog: catalog, Members: members, AuditSvc: auditSvc, Metrics: m,
	})

	srv := NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{Environment: "test"}),
		Cfg:             config.Config{AuthJWTSecret: testSecret},
		Log:             log,
		AuthzSvc:        authz,
		AuditSvc:        auditSvc,
		MembershipSvc:   members,
		InvitationSvc:   invitations,
		OrganizationSvc: orgs,
		Directory:       directory.NewDirectory(conn),
	})

	return &testServer{t: t, db: conn, srv: srv, engine: srv.Engine()}
}

func signToken(t *testing.T, secret string, userID snowflake.ID, email string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: email,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(method, path string, userID snowflake.ID, email string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+signToken(ts.t, testSecret, userID, email))
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createOrg(userID snowflake.ID, name string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/organizations", userID, "", gin.H{"name": name})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Type
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", 0, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/organizations", 0, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", adminID, ""))
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrganizationAdmitsCreatorAsAdmin(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "Acme Robotics")

	rec := ts.do(http.MethodGet, "/api/organizations", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeList(t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, orgID, items[0]["id"])
	assert.Equal(t, "ADMIN", items[0]["role"])

	rec = ts.do(http.MethodPost, "/api/organizations", bobID, "", gin.H{"name": "Acme Robotics"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/organizations", bobID, "", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrganization(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "Acme")

	rec := ts.do(http.MethodGet, "/api/organizations/"+orgID, bobID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/organizations/999", bobID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/organizations/abc", bobID, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrganizationRequiresWriteOrganization(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "Acme")

	rec := ts.do(http.MethodPatch, "/api/organizations/"+orgID, bobID, "", gin.H{"description": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, "/api/organizations/"+orgID, adminID, "", gin.H{"description": "Robots for everyone"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Robots for everyone", resp["description"])
}

func TestInvitationLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.db.Create(&directory.User{ID: adminID, Email: "alice@example.com", FirstName: "Alice"}).Error)
	require.NoError(t, ts.db.Create(&directory.User{ID: bobID, Email: "bob@example.com", FirstName: "Bob"}).Error)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "Bob@Example.com", "role": "member"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "bob@example.com", "role": "ADMIN"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "carol@example.com", "role": "OWNER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, base+"/invitations", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/me/invitations", bobID, "BOB@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeList(t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, orgID, pending[0]["organization_id"])

	// bob is not a member yet
	rec = ts.do(http.MethodPost, base+"/invitations", bobID, "bob@example.com", gin.H{"email": "carol@example.com", "role": "MEMBER"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{"accept": true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/me/invitations", bobID, "bob@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))

	rec = ts.do(http.MethodGet, base+"/members", bobID, "bob@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeList(t, rec)
	require.Len(t, members, 2)
	assert.Equal(t, adminID.String(), members[0]["user_id"])
	assert.Equal(t, "ADMIN", members[0]["role"])
	assert.Equal(t, "Alice", members[0]["first_name"])
	assert.Equal(t, bobID.String(), members[1]["user_id"])
	assert.Equal(t, "MEMBER", members[1]["role"])
	assert.Equal(t, "Bob", members[1]["first_name"])

	// Member cannot invite.
	rec = ts.do(http.MethodPost, base+"/invitations", bobID, "bob@example.com", gin.H{"email": "carol@example.com", "role": "MEMBER"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Answering again is a no-op.
	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{"accept": false})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type heldAnswerLimiter struct{}

func (heldAnswerLimiter) Enabled() bool { return true }

func (heldAnswerLimiter) AllowSend(ctx context.Context, orgID string) (*ratelimit.RateLimitResult, error) {
	return &ratelimit.RateLimitResult{Allowed: true}, nil
}

func (heldAnswerLimiter) TryLockAnswer(ctx context.Context, orgID, email string) (string, bool, error) {
	return "", false, nil
}

func (heldAnswerLimiter) ReleaseAnswer(ctx context.Context, orgID, email, token string) {}

func TestAnswerInProgressAsksClientToRetry(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "bob@example.com", "role": "MEMBER"})
	require.Equal(t, http.StatusCreated, rec.Code)

	ts.srv.limiter = heldAnswerLimiter{}
	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{"accept": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "conflict", errorType(t, rec))

	rec = ts.do(http.MethodGet, base+"/invitations", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = ts.do(http.MethodGet, base+"/members", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)
}

func TestRejectAndRevokeInvitation(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "bob@example.com", "role": "MEMBER"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{"accept": false})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, base+"/members", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "carol@example.com", "role": "MEMBER"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodDelete, base+"/invitations/carol@example.com", adminID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, base+"/invitations/carol@example.com", adminID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, base+"/invitations", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))
}

func TestInviteUnknownOrganization(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/organizations/4242/invitations", adminID, "", gin.H{"email": "bob@example.com", "role": "MEMBER"})
	// The caller holds no membership in a missing organization.
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChangeRoleAndRemoveMember(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPost, base+"/invitations", adminID, "", gin.H{"email": "bob@example.com", "role": "MEMBER"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, base+"/invitations/answer", bobID, "bob@example.com", gin.H{"accept": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodPatch, base+"/members/"+adminID.String(), bobID, "", gin.H{"role": "MEMBER"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, base+"/members/"+bobID.String(), adminID, "", gin.H{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPatch, base+"/members/"+carolID.String(), adminID, "", gin.H{"role": "ADMIN"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPatch, base+"/members/"+bobID.String(), adminID, "", gin.H{"role": "ADMIN"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// bob is an admin now and can write the organization
	rec = ts.do(http.MethodPatch, base, bobID, "", gin.H{"description": "co-run"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPatch, base+"/members/"+bobID.String(), adminID, "", gin.H{"role": "MEMBER"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Members may not remove others, but may leave.
	rec = ts.do(http.MethodDelete, base+"/members/"+adminID.String(), bobID, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodDelete, base+"/members/"+bobID.String(), bobID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, base+"/members", bobID, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodDelete, base+"/members/"+bobID.String(), adminID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFollowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPut, base+"/follow", carolID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = ts.do(http.MethodPut, base+"/follow", carolID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first["id"], second["id"])

	rec = ts.do(http.MethodGet, base+"/followers", bobID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	followers := decodeList(t, rec)
	require.Len(t, followers, 1)
	assert.Equal(t, carolID.String(), followers[0]["user_id"])

	rec = ts.do(http.MethodDelete, base+"/follow", carolID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, base+"/follow", carolID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodPut, "/api/organizations/4242/follow", carolID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditLogsListDenialsAndMutations(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.createOrg(adminID, "O1")
	base := "/api/organizations/" + orgID

	rec := ts.do(http.MethodPatch, base, bobID, "", gin.H{"name": "mine"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, base+"/audit-logs?action=authorization.denied", adminID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeList(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, bobID.String(), entries[0]["actor_id"])

	rec = ts.do(http.MethodGet, base+"/audit-logs", bobID, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/nope", 0, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrUnauthorized, http.StatusUnauthorized},
		{authorization.ErrForbidden, http.StatusForbidden},
		{role.ErrInvalidRole, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrAnswerInProgress, http.StatusConflict},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
