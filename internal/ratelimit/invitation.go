package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyInvitationSendOrg = "invitation:send:org:%s"
	keyInvitationAnswer  = "invitation:answer:%s:%s"

	endpointInvitationSend = "invitation.send"
	answerLockTTL          = 10 * time.Second
)

type InvitationLimiterParams struct {
	fx.In

	Config  config.Config
	Client  *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

// InvitationLimiter throttles invitation sends per organization and
// de-duplicates concurrent answers to the same invitation.
type InvitationLimiter struct {
	enabled bool

	bucket  *TokenBucket
	locker  *Locker
	metrics *metrics.Metrics
	log     *zap.Logger

	rate  float64
	burst int
}

func NewInvitationLimiter(p InvitationLimiterParams) *InvitationLimiter {
	limiter := &InvitationLimiter{
		metrics: p.Metrics,
		log:     p.Log.Named("ratelimit.invitation"),
		rate:    p.Config.Invitation.RatePerMinute / 60,
		burst:   p.Config.Invitation.Burst,
	}
	if p.Client == nil || limiter.rate <= 0 || limiter.burst <= 0 {
		return limiter
	}

	limiter.enabled = true
	limiter.bucket = NewTokenBucket(p.Client)
	limiter.locker = NewLocker(p.Client)
	return limiter
}

func (l *InvitationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowSend takes one token from the organization's invitation bucket.
func (l *InvitationLimiter) AllowSend(ctx context.Context, orgID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	orgID = strings.TrimSpace(orgID)
	result, err := l.bucket.Allow(ctx, fmt.Sprintf(keyInvitationSendOrg, orgID), l.rate, l.burst)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, orgID, endpointInvitationSend, "error")
		return result, err
	}
	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, orgID, endpointInvitationSend)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, orgID, endpointInvitationSend, "exhausted")
	}
	return result, nil
}

// TryLockAnswer reports ok=false when another request is already answering the invitation.
func (l *InvitationLimiter) TryLockAnswer(ctx context.Context, orgID, email string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, answerKey(orgID, email), answerLockTTL)
}

func (l *InvitationLimiter) ReleaseAnswer(ctx context.Context, orgID, email, token string) {
	if !l.Enabled() {
		return
	}
	held, err := l.locker.Release(ctx, answerKey(orgID, email), token)
	if err != nil {
		l.log.Warn("failed to release answer lock", zap.String("org_id", orgID), zap.Error(err))
		return
	}
	if !held {
		l.log.Warn("answer lock expired before release", zap.String("org_id", orgID), zap.Duration("ttl", answerLockTTL))
	}
}

func answerKey(orgID, email string) string {
	return fmt.Sprintf(keyInvitationAnswer, strings.TrimSpace(orgID), strings.ToLower(strings.TrimSpace(email)))
}
