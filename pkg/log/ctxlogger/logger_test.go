package ctxlogger

import (
	"context"
	"testing"

	"github.com/smallbiznis/crowdspace/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-1")
	ctx = ContextWithEventSubject(ctx, "invitation.notify")

	WithContext(ctx, base).Info("sent")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "cid-1", fields["correlation_id"])
		assert.Equal(t, "invitation.notify", fields["event_subject"])
		assert.NotContains(t, fields, "trace_id")
	}
}

func TestWithContextNilSafe(t *testing.T) {
	assert.Nil(t, WithContext(context.Background(), nil))
	assert.Equal(t, "", EventSubject(context.Background()))
	ctx := ContextWithEventSubject(context.Background(), "")
	assert.Equal(t, "", EventSubject(ctx))
}
