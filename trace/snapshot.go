// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Status is the span outcome set via Span.SetStatus.
type Status struct {
	Code        codes.Code
	Description string
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name              string
	Time              time.Time
	Attributes        []attribute.KeyValue
	DroppedAttributes int
}

// Link connects a span to another span context.
type Link struct {
	SpanContext       trace.SpanContext
	Attributes        []attribute.KeyValue
	DroppedAttributes int
}

// SpanData is the immutable snapshot of an ended span handed to span
// processors. Processors must not mutate it; a processor wishing to
// enrich the span must export a copy instead.
type SpanData struct {
	Name        string
	SpanContext trace.SpanContext
	Parent      trace.SpanContext
	SpanKind    trace.SpanKind
	StartTime   time.Time
	EndTime     time.Time
	Status      Status

	Attributes []attribute.KeyValue
	Events     []Event
	Links      []Link

	DroppedAttributes int
	DroppedEvents     int
	DroppedLinks      int

	Resource             *resource.Resource
	InstrumentationScope instrumentation.Scope
}
