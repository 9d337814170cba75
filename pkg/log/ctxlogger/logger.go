// Package ctxlogger enriches loggers used off the request path, where the
// request middleware fields are not available.
package ctxlogger

import (
	"context"

	"github.com/smallbiznis/crowdspace/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type eventSubjectKey struct{}

// ContextWithEventSubject names the background job the context belongs to.
func ContextWithEventSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, eventSubjectKey{}, subject)
}

// EventSubject returns the subject set by ContextWithEventSubject.
func EventSubject(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	subject, _ := ctx.Value(eventSubjectKey{}).(string)
	return subject
}

// WithContext adds correlation, trace and event subject fields to base.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 4)
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if subject := EventSubject(ctx); subject != "" {
		fields = append(fields, zap.String("event_subject", subject))
	}
	return base.With(fields...)
}
