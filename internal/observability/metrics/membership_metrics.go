package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ConflictAlreadyMember       = "already_member"
	ConflictDuplicateInvitation = "duplicate_invitation"
)

// MembershipMetrics captures membership and invitation health signals scraped from /metrics.
type MembershipMetrics struct {
	conflicts            *prometheus.CounterVec
	authorizationDenied  *prometheus.CounterVec
	notificationFailures prometheus.Counter
	swallowedConflicts   prometheus.Counter
}

var (
	membershipMetricsOnce sync.Once
	membershipMetrics     *MembershipMetrics
)

// Membership returns the singleton membership metrics registry.
func Membership() *MembershipMetrics {
	return MembershipWithConfig(Config{})
}

// MembershipWithConfig returns the singleton membership metrics registry using config labels.
func MembershipWithConfig(cfg Config) *MembershipMetrics {
	membershipMetricsOnce.Do(func() {
		membershipMetrics = NewMembershipMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return membershipMetrics
}

// NewMembershipMetrics registers the collectors on registerer. Tests pass a fresh registry.
func NewMembershipMetrics(registerer prometheus.Registerer, cfg Config) *MembershipMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "crowdspace"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "crowdspace_membership_conflicts_total",
		Help:        "Writes rejected by a membership or invitation uniqueness constraint.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	authorizationDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "crowdspace_authorization_denied_total",
		Help:        "Requests denied by the capability guard.",
		ConstLabels: constLabels,
	}, []string{"capability"})
	notificationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "crowdspace_notification_failures_total",
		Help:        "Invitation notifications that failed to send.",
		ConstLabels: constLabels,
	})
	swallowedConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "crowdspace_invitation_accept_already_member_total",
		Help:        "Accepted invitations whose user was already a member.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(conflicts, authorizationDenied, notificationFailures, swallowedConflicts)

	return &MembershipMetrics{
		conflicts:            conflicts,
		authorizationDenied:  authorizationDenied,
		notificationFailures: notificationFailures,
		swallowedConflicts:   swallowedConflicts,
	}
}

func (m *MembershipMetrics) IncConflict(kind string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *MembershipMetrics) IncAuthorizationDenied(capability string) {
	if m == nil || m.authorizationDenied == nil {
		return
	}
	m.authorizationDenied.WithLabelValues(capability).Inc()
}

func (m *MembershipMetrics) IncNotificationFailure() {
	if m == nil || m.notificationFailures == nil {
		return
	}
	m.notificationFailures.Inc()
}

func (m *MembershipMetrics) IncAcceptAlreadyMember() {
	if m == nil || m.swallowedConflicts == nil {
		return
	}
	m.swallowedConflicts.Inc()
}
