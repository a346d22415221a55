// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package log implements the logging signal: a LoggerProvider wiring
// log record processors to the go.opentelemetry.io/otel/log API.
package log

import (
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

// attributesInlineCount is the number of attributes stored inline in
// every Record. Five covers the common case without a heap allocation
// per log; the overflow spills into a growable slice.
const attributesInlineCount = 5

// Record is a log record as it travels through the processor chain.
//
// Processors receive a pointer so they can enrich the record without
// copying; a processor that wants to keep the record beyond its OnEmit
// call must Clone it.
type Record struct {
	timestamp         time.Time
	observedTimestamp time.Time
	severity          log.Severity
	severityText      string
	body              log.Value
	eventName         string

	// target overrides the instrumentation scope name on export when
	// set, letting bridge appenders tag records per logging module
	// without a scope registry lookup on the hot path.
	target string

	traceID    trace.TraceID
	spanID     trace.SpanID
	traceFlags trace.TraceFlags

	front  [attributesInlineCount]log.KeyValue
	nFront int
	back   []log.KeyValue

	dropped int

	scope    *instrumentation.Scope
	resource *resource.Resource

	attributeCountLimit int
}

// Timestamp returns the time the event occurred, if known.
func (r *Record) Timestamp() time.Time { return r.timestamp }

// SetTimestamp sets the time the event occurred.
func (r *Record) SetTimestamp(t time.Time) { r.timestamp = t }

// ObservedTimestamp returns the time the record passed through the
// logger. The SDK guarantees it is set on every emitted record.
func (r *Record) ObservedTimestamp() time.Time { return r.observedTimestamp }

// SetObservedTimestamp sets the observed timestamp.
func (r *Record) SetObservedTimestamp(t time.Time) { r.observedTimestamp = t }

// Severity returns the severity number (1-24, 0 when unset).
func (r *Record) Severity() log.Severity { return r.severity }

// SetSeverity sets the severity number.
func (r *Record) SetSeverity(s log.Severity) { r.severity = s }

// SeverityText returns the severity as free-form text.
func (r *Record) SeverityText() string { return r.severityText }

// SetSeverityText sets the severity text.
func (r *Record) SetSeverityText(s string) { r.severityText = s }

// Body returns the record body.
func (r *Record) Body() log.Value { return r.body }

// SetBody sets the record body.
func (r *Record) SetBody(v log.Value) { r.body = v }

// EventName returns the event name, if any.
func (r *Record) EventName() string { return r.eventName }

// SetEventName sets the event name.
func (r *Record) SetEventName(s string) { r.eventName = s }

// Target returns the scope-name override supplied by a bridge, if any.
func (r *Record) Target() string { return r.target }

// SetTarget sets the scope-name override used on export.
func (r *Record) SetTarget(s string) { r.target = s }

// TraceID returns the trace id of the active span when the record was
// emitted.
func (r *Record) TraceID() trace.TraceID { return r.traceID }

// SetTraceID sets the trace id.
func (r *Record) SetTraceID(id trace.TraceID) { r.traceID = id }

// SpanID returns the span id of the active span when the record was
// emitted.
func (r *Record) SpanID() trace.SpanID { return r.spanID }

// SetSpanID sets the span id.
func (r *Record) SetSpanID(id trace.SpanID) { r.spanID = id }

// TraceFlags returns the trace flags of the active span.
func (r *Record) TraceFlags() trace.TraceFlags { return r.traceFlags }

// SetTraceFlags sets the trace flags.
func (r *Record) SetTraceFlags(f trace.TraceFlags) { r.traceFlags = f }

// AddAttributes appends attributes, storing the first five inline.
// Attributes beyond the configured count limit are dropped and
// counted; attributes with empty keys are always dropped.
func (r *Record) AddAttributes(attrs ...log.KeyValue) {
	for _, kv := range attrs {
		if kv.Key == "" {
			r.dropped++
			continue
		}
		if r.attributeCountLimit > 0 && r.AttributesLen() >= r.attributeCountLimit {
			r.dropped++
			continue
		}
		if r.nFront < attributesInlineCount {
			r.front[r.nFront] = kv
			r.nFront++
			continue
		}
		r.back = append(r.back, kv)
	}
}

// AttributesLen returns the number of attributes on the record.
func (r *Record) AttributesLen() int {
	return r.nFront + len(r.back)
}

// DroppedAttributes returns the number of attributes dropped due to
// limits.
func (r *Record) DroppedAttributes() int { return r.dropped }

// WalkAttributes calls f for each attribute until f returns false.
func (r *Record) WalkAttributes(f func(log.KeyValue) bool) {
	for i := 0; i < r.nFront; i++ {
		if !f(r.front[i]) {
			return
		}
	}
	for _, kv := range r.back {
		if !f(kv) {
			return
		}
	}
}

// InstrumentationScope returns the scope of the logger that emitted
// the record.
func (r *Record) InstrumentationScope() instrumentation.Scope {
	if r.scope == nil {
		return instrumentation.Scope{}
	}
	return *r.scope
}

// Resource returns the resource of the provider that emitted the
// record.
func (r *Record) Resource() *resource.Resource { return r.resource }

// Clone returns a deep copy of the record safe to retain past the
// OnEmit call that delivered it.
func (r *Record) Clone() Record {
	out := *r
	out.back = make([]log.KeyValue, len(r.back))
	copy(out.back, r.back)
	return out
}
