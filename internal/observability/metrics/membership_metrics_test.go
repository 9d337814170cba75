package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMembershipMetricsCounters(t *testing.T) {
	m := NewMembershipMetrics(prometheus.NewRegistry(), Config{ServiceName: "test"})

	m.IncConflict(ConflictAlreadyMember)
	m.IncConflict(ConflictAlreadyMember)
	m.IncConflict(ConflictDuplicateInvitation)
	m.IncAuthorizationDenied("members.write")
	m.IncNotificationFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts.WithLabelValues(ConflictAlreadyMember)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues(ConflictDuplicateInvitation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authorizationDenied.WithLabelValues("members.write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationFailures))
}

func TestNilMembershipMetricsAreSafe(t *testing.T) {
	var m *MembershipMetrics
	m.IncConflict(ConflictAlreadyMember)
	m.IncAuthorizationDenied("members.read")
	m.IncNotificationFailure()
	m.IncAcceptAlreadyMember()
}
