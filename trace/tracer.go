// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/suppress"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
)

type tracer struct {
	embedded.Tracer

	state *providerState
	scope instrumentation.Scope
}

var _ trace.Tracer = (*tracer)(nil)

// Start creates a span. The sampler decides whether the span records;
// dropped spans still return a span that propagates the derived span
// context through ctx.
func (t *tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)

	if t.state.shutdown.Load() || suppress.IsSuppressed(ctx) {
		sc := trace.SpanContextFromContext(ctx)
		span := nonRecordingSpan{tracer: t, sc: sc}
		return trace.ContextWithSpan(ctx, span), span
	}

	parentCtx := ctx
	if cfg.NewRoot() {
		parentCtx = trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	}
	psc := trace.SpanContextFromContext(parentCtx)

	var tid trace.TraceID
	var sid trace.SpanID
	if psc.TraceID().IsValid() {
		tid = psc.TraceID()
		sid = t.state.idGenerator.NewSpanID(ctx, tid)
	} else {
		tid, sid = t.state.idGenerator.NewIDs(ctx)
	}

	result := t.state.sampler.ShouldSample(SamplingParameters{
		ParentContext: parentCtx,
		TraceID:       tid,
		Name:          name,
		Kind:          cfg.SpanKind(),
		Attributes:    cfg.Attributes(),
		Links:         cfg.Links(),
	})

	var flags trace.TraceFlags
	if result.Decision == RecordAndSample {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		TraceState: result.Tracestate,
	})

	if result.Decision == Drop {
		span := nonRecordingSpan{tracer: t, sc: sc}
		return trace.ContextWithSpan(ctx, span), span
	}

	startTime := cfg.Timestamp()
	if startTime.IsZero() {
		startTime = time.Now()
	}

	span := &recordingSpan{
		tracer:    t,
		sc:        sc,
		parent:    psc,
		name:      name,
		kind:      cfg.SpanKind(),
		startTime: startTime,
	}
	for _, kv := range cfg.Attributes() {
		span.addAttribute(kv)
	}
	for _, kv := range result.Attributes {
		span.addAttribute(kv)
	}
	for _, l := range cfg.Links() {
		span.addLink(l)
	}

	return trace.ContextWithSpan(ctx, span), span
}
