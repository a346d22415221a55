// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

import (
	"context"
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/internal/suppress"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/trace"
)

type logger struct {
	embedded.Logger

	state *loggerProviderState
	scope instrumentation.Scope
}

var _ log.Logger = (*logger)(nil)

// Emit converts r into an SDK record, stamps the observed timestamp
// and the active trace context, and runs the processor chain.
func (l *logger) Emit(ctx context.Context, r log.Record) {
	if l.state.shutdown.Load() || suppress.IsSuppressed(ctx) {
		return
	}

	rec := l.newRecord(ctx, r)
	for _, p := range l.state.processors {
		if err := p.OnEmit(ctx, &rec); err != nil {
			selflog.Error("log processor OnEmit failed", "error", err)
		}
	}
}

// Enabled reports whether any registered processor wants a record with
// the given parameters. With no filtering processors registered every
// record is wanted.
func (l *logger) Enabled(ctx context.Context, param log.EnabledParameters) bool {
	if l.state.shutdown.Load() || suppress.IsSuppressed(ctx) {
		return false
	}

	filtered := false
	for _, p := range l.state.processors {
		fp, ok := p.(FilterProcessor)
		if !ok {
			continue
		}
		filtered = true
		if fp.Enabled(ctx, param) {
			return true
		}
	}
	return !filtered
}

func (l *logger) newRecord(ctx context.Context, r log.Record) Record {
	rec := Record{
		timestamp:         r.Timestamp(),
		observedTimestamp: r.ObservedTimestamp(),
		severity:          r.Severity(),
		severityText:      r.SeverityText(),
		body:              r.Body(),
		eventName:         r.EventName(),

		scope:    &l.scope,
		resource: l.state.resource,

		attributeCountLimit: l.state.limits.AttributeCountLimit,
	}
	if rec.observedTimestamp.IsZero() {
		rec.observedTimestamp = time.Now()
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		rec.traceID = sc.TraceID()
		rec.spanID = sc.SpanID()
		rec.traceFlags = sc.TraceFlags()
	}

	r.WalkAttributes(func(kv log.KeyValue) bool {
		rec.AddAttributes(kv)
		return true
	})
	return rec
}
